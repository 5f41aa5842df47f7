package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/graph"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/n8n"
)

// NodeTypeCatalog answers whether a node type is installed on the remote
// instance. A nil catalog disables node type checking.
type NodeTypeCatalog interface {
	Has(ctx context.Context, nodeType string) (bool, error)
}

// ClientCatalog is a NodeTypeCatalog backed by the remote node type listing,
// fetched once and cached for the catalog's lifetime.
type ClientCatalog struct {
	client n8n.Client

	mu    sync.Mutex
	known map[string]struct{}
}

func NewClientCatalog(client n8n.Client) *ClientCatalog {
	return &ClientCatalog{client: client}
}

func (c *ClientCatalog) Has(ctx context.Context, nodeType string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.known == nil {
		types, err := c.client.ListInstalledNodeTypes(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to list installed node types: %w", err)
		}

		c.known = make(map[string]struct{}, len(types))
		for _, t := range types {
			c.known[t] = struct{}{}
		}
	}

	_, ok := c.known[nodeType]

	return ok, nil
}

// WorkflowReport is the validation outcome for a single bundled file.
type WorkflowReport struct {
	Filename string   `json:"filename"`
	Name     string   `json:"name,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Report is the outcome of validating the whole bundle without touching any
// remote workflow. Valid is true when no file and no graph error exists;
// warnings never block an import. MissingNodeTypes maps each node type
// absent from the remote instance to the number of workflows using it.
type Report struct {
	Valid            bool             `json:"valid"`
	Total            int              `json:"total"`
	Errors           []string         `json:"errors,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
	MissingNodeTypes map[string]int   `json:"missing_node_types,omitempty"`
	Workflows        []WorkflowReport `json:"workflows"`
}

// Validator runs the read-only pre-import checks: schema validity per file,
// dependency graph soundness, installed node types, and credential hygiene.
type Validator struct {
	loader  *bundle.Loader
	catalog NodeTypeCatalog
	logger  *slog.Logger
}

func NewValidator(loader *bundle.Loader, catalog NodeTypeCatalog, logger *slog.Logger) *Validator {
	return &Validator{
		loader:  loader,
		catalog: catalog,
		logger:  logger.With("module", "validator"),
	}
}

// Validate checks every bundled definition. Unlike LoadAll, a malformed
// file does not abort the run: each file's findings are reported so an
// operator can fix the whole bundle in one pass.
func (v *Validator) Validate(ctx context.Context) (*Report, error) {
	filenames, err := v.loader.Filenames()
	if err != nil {
		return nil, err
	}

	report := &Report{
		Total:     len(filenames),
		Workflows: make([]WorkflowReport, 0, len(filenames)),
	}

	defs := make([]*models.WorkflowDefinition, 0, len(filenames))
	perFile := make(map[string]*WorkflowReport, len(filenames))

	for _, filename := range filenames {
		report.Workflows = append(report.Workflows, WorkflowReport{Filename: filename})
		fileReport := &report.Workflows[len(report.Workflows)-1]
		perFile[filename] = fileReport

		def, err := v.loader.Load(ctx, filename)
		if err != nil {
			var defErr *bundle.DefinitionError
			if errors.As(err, &defErr) && len(defErr.Violations) > 0 {
				fileReport.Errors = append(fileReport.Errors, defErr.Violations...)
			} else {
				fileReport.Errors = append(fileReport.Errors, err.Error())
			}

			continue
		}

		fileReport.Name = def.Name
		defs = append(defs, def)

		if def.HasCredentials {
			fileReport.Warnings = append(fileReport.Warnings,
				"definition carries credential references; they are stripped on import and must be re-bound in n8n")
		}

		missing, err := v.checkNodeTypes(ctx, def, fileReport)
		if err != nil {
			return nil, err
		}

		for _, nodeType := range missing {
			if report.MissingNodeTypes == nil {
				report.MissingNodeTypes = make(map[string]int)
			}

			report.MissingNodeTypes[nodeType]++
		}
	}

	v.checkGraph(defs, report, perFile)

	for i := range report.Workflows {
		report.Errors = append(report.Errors, report.Workflows[i].Errors...)
		report.Warnings = append(report.Warnings, report.Workflows[i].Warnings...)
	}

	report.Valid = len(report.Errors) == 0

	v.logger.InfoContext(ctx, "Bundle validated",
		"total", report.Total, "valid", report.Valid,
		"errors", len(report.Errors), "warnings", len(report.Warnings))

	return report, nil
}

// checkNodeTypes flags nodes whose type is not installed remotely and
// returns the missing types for aggregation. Catalog access failures abort
// validation: an unreachable instance would otherwise report every node
// type as missing.
func (v *Validator) checkNodeTypes(ctx context.Context, def *models.WorkflowDefinition, fileReport *WorkflowReport) ([]string, error) {
	if v.catalog == nil {
		return nil, nil
	}

	missing := make([]string, 0)

	for _, nodeType := range def.NodeTypes() {
		ok, err := v.catalog.Has(ctx, nodeType)
		if err != nil {
			return nil, err
		}

		if !ok {
			missing = append(missing, nodeType)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		fileReport.Errors = append(fileReport.Errors,
			fmt.Sprintf("node types not installed on the n8n instance: %s", strings.Join(missing, ", ")))
	}

	return missing, nil
}

// checkGraph attributes graph findings back to the files that caused them.
func (v *Validator) checkGraph(defs []*models.WorkflowDefinition, report *Report, perFile map[string]*WorkflowReport) {
	analysis := graph.Analyze(defs)

	byName := make(map[string]string, len(defs))
	for _, def := range defs {
		byName[def.Name] = def.Filename
	}

	for _, cycle := range analysis.Cycles {
		message := fmt.Sprintf("cyclic dependency: %s", strings.Join(cycle, " -> "))

		for _, name := range cycle {
			if fileReport, ok := perFile[byName[name]]; ok {
				fileReport.Errors = append(fileReport.Errors, message)
			}
		}
	}

	report.Warnings = append(report.Warnings, analysis.Warnings...)
}
