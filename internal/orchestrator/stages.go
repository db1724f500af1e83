// Package orchestrator implements the processing pipeline that runs
// inside a launched container task: download, audio/visual extraction,
// transcription, summarization, and indexing of one uploaded video.
package orchestrator

// Stage names, in fixed pipeline order. Stage numbers in comments match
// the orchestrator's stage table.
const (
	StageDownload               = "download"               // 1
	StageAudioExtraction        = "audio_extraction"         // 2
	StageDiarization            = "diarization"              // 3a
	StageASR                    = "asr"                      // 3b
	StageSceneDetection         = "scene_detection"           // 4a
	StageKeyframes              = "keyframes"                 // 4b
	StageSynchronization        = "synchronization"           // 5
	StageMeetingClassification  = "meeting_classification"    // 6
	StageSummarization          = "summarization"             // 7
	StageUpload                 = "upload"                    // 8
	StageIndexing               = "indexing"                  // 9
)

// totalStages is used to compute progress = completed_stages / total_stages.
// Stages 3a/3b and 4a/4b run in parallel but still count as two stages
// each toward the total, matching the table in the orchestrator stage list.
const totalStages = 11

// degradableStages lists stages that may fail without failing the job.
var degradableStages = map[string]bool{
	StageDiarization:           true,
	StageSceneDetection:        true,
	StageKeyframes:             true,
	StageMeetingClassification: true,
	StageIndexing:              true,
}

func isDegradable(stage string) bool {
	return degradableStages[stage]
}

// stageOrder gives each stage's 1-based position for progress computation.
var stageOrder = map[string]int{
	StageDownload:              1,
	StageAudioExtraction:       2,
	StageDiarization:           3,
	StageASR:                   4,
	StageSceneDetection:        5,
	StageKeyframes:             6,
	StageSynchronization:       7,
	StageMeetingClassification: 8,
	StageSummarization:         9,
	StageUpload:                10,
	StageIndexing:              11,
}

func progressFor(stage string) float64 {
	n, ok := stageOrder[stage]
	if !ok {
		return 0
	}
	return float64(n) / float64(totalStages)
}
