package importer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodfactory/flowsync/pkg/events"
	"github.com/prodfactory/flowsync/pkg/importer"
)

func collect(t *testing.T, stream <-chan events.ImportProgress) []events.ImportProgress {
	t.Helper()

	collected := make([]events.ImportProgress, 0)
	for event := range stream {
		collected = append(collected, event)
	}

	return collected
}

func TestImportAllStreamEventOrder(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A", "B")
	writeWorkflow(t, f.dir, "b.json", "B")

	stream := f.orchestrator.ImportAllStream(context.Background(), importer.Options{})
	collected := collect(t, stream)

	require.NotEmpty(t, collected)
	assert.Equal(t, events.ImportStartedEvent, collected[0].Type)

	// Exactly one terminal event, and it is the last one.
	terminals := 0

	for _, event := range collected {
		if event.Type.Terminal() {
			terminals++
		}
	}

	assert.Equal(t, 1, terminals)
	assert.Equal(t, events.ImportCompletedEvent, collected[len(collected)-1].Type)

	// Phase 1 events all precede phase 2 events.
	sawPhaseTwo := false

	for _, event := range collected {
		if event.Type == events.ImportPhaseChangedEvent && event.Phase == 2 {
			sawPhaseTwo = true
		}

		if event.Phase == 1 {
			assert.False(t, sawPhaseTwo, "phase 1 event after phase 2 started")
		}
	}

	assert.True(t, sawPhaseTwo)

	// Every event in one run shares the run id.
	for _, event := range collected {
		assert.Equal(t, collected[0].ID, event.ID)
	}
}

func TestImportAllStreamCyclicBundleEndsWithFailure(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A", "B")
	writeWorkflow(t, f.dir, "b.json", "B", "A")

	stream := f.orchestrator.ImportAllStream(context.Background(), importer.Options{})
	collected := collect(t, stream)

	require.NotEmpty(t, collected)

	last := collected[len(collected)-1]
	assert.Equal(t, events.ImportFailedEvent, last.Type)
	assert.Contains(t, last.Error, "cyclic")
}

func TestImportAllStreamWorkflowEventsCarryStatus(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A")

	stream := f.orchestrator.ImportAllStream(context.Background(), importer.Options{})

	var phase1Completed, phase2Completed []events.ImportProgress

	for event := range stream {
		if event.Type != events.ImportWorkflowCompletedEvent {
			continue
		}

		switch event.Phase {
		case 1:
			phase1Completed = append(phase1Completed, event)
		case 2:
			phase2Completed = append(phase2Completed, event)
		}
	}

	require.Len(t, phase1Completed, 1)
	assert.Equal(t, "created", phase1Completed[0].Status)
	require.Len(t, phase2Completed, 1)
	assert.Equal(t, "imported", phase2Completed[0].Status)
}
