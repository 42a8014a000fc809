package workflow

import "slidecast/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Stages left nil are skipped; jobs waiting on them stay queued.
func (m *Manager) ConfigureStages(set StageSet) {
	all := []pipelineStage{
		{name: "extraction", handler: set.Extraction, startStatus: queue.StatusPending, processingStatus: queue.StatusExtracting, doneStatus: queue.StatusExtracted},
		{name: "narration", handler: set.Narration, startStatus: queue.StatusExtracted, processingStatus: queue.StatusNarrating, doneStatus: queue.StatusNarrated},
		{name: "translation", handler: set.Translation, startStatus: queue.StatusNarrated, processingStatus: queue.StatusTranslating, doneStatus: queue.StatusTranslated},
		{name: "synthesis", handler: set.Synthesis, startStatus: queue.StatusTranslated, processingStatus: queue.StatusSynthesizing, doneStatus: queue.StatusSynthesized},
		{name: "timing", handler: set.Timing, startStatus: queue.StatusSynthesized, processingStatus: queue.StatusTiming, doneStatus: queue.StatusTimed},
		{name: "assembly", handler: set.Assembly, startStatus: queue.StatusTimed, processingStatus: queue.StatusAssembling, doneStatus: queue.StatusCompleted},
	}

	lanes := make(map[queue.ProcessingLane]*laneState)
	order := make([]queue.ProcessingLane, 0, 2)
	for _, stg := range all {
		if stg.handler == nil {
			continue
		}
		kind := queue.LaneForStatus(stg.startStatus)
		lane, ok := lanes[kind]
		if !ok {
			lane = &laneState{kind: kind}
			lanes[kind] = lane
			order = append(order, kind)
		}
		lane.stages = append(lane.stages, stg)
	}
	for _, lane := range lanes {
		lane.finalize()
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
