package runner

import "github.com/ppiankov/flowspectre/internal/models"

// Stage is a named slice of the 0-100 job progress range.
type Stage struct {
	Name  string
	Start int
	End   int
}

var (
	StageInit       = Stage{Name: "init", Start: 0, End: 5}
	StageDiscovery  = Stage{Name: "discovery", Start: 5, End: 35}
	StageChecklist  = Stage{Name: "checklist", Start: 35, End: 65}
	StageInspection = Stage{Name: "inspection", Start: 65, End: 95}
	StageFinalize   = Stage{Name: "finalize", Start: 95, End: 100}
)

var stagesByName = map[string]Stage{
	StageInit.Name:       StageInit,
	StageDiscovery.Name:  StageDiscovery,
	StageChecklist.Name:  StageChecklist,
	StageInspection.Name: StageInspection,
	StageFinalize.Name:   StageFinalize,
}

// discoveryHalfway is the number of finished traces at which discovery
// reports half of its range. Its total is unknown, so the fill approaches
// the end without reaching it.
const discoveryHalfway = 3

// tracker turns stage transitions and unit callbacks into job progress.
// Reported values never decrease.
type tracker struct {
	jobID   string
	sink    Sink
	current int
	stage   string
	started bool
}

func newTracker(jobID string, sink Sink) *tracker {
	return &tracker{jobID: jobID, sink: sink}
}

func (t *tracker) enter(s Stage) {
	t.report(s.Name, s.Start)
}

func (t *tracker) complete(s Stage) {
	t.report(s.Name, s.End)
}

func (t *tracker) unitStarted(stage string, index, total int) {
	s, ok := stagesByName[stage]
	if !ok {
		return
	}
	t.report(s.Name, s.at(index-1, total))
}

func (t *tracker) unitFinished(stage string, index, total int) {
	s, ok := stagesByName[stage]
	if !ok {
		return
	}
	t.report(s.Name, s.at(index, total))
}

// at maps done units to a value inside the stage. A total of zero means unknown.
func (s Stage) at(done, total int) int {
	span := s.End - s.Start
	if done <= 0 {
		return s.Start
	}
	if total <= 0 {
		// done/(done+k) stays below 1 for any done
		v := s.Start + span*done/(done+discoveryHalfway)
		if v >= s.End {
			v = s.End - 1
		}
		return v
	}
	if done >= total {
		return s.End
	}
	return s.Start + span*done/total
}

func (t *tracker) report(stage string, value int) {
	if value < t.current {
		value = t.current
	}
	if value > 100 {
		value = 100
	}
	if t.started && value == t.current && stage == t.stage {
		return
	}
	t.started = true
	t.current = value
	t.stage = stage
	t.sink.UpdateProgress(t.jobID, models.Progress{Current: value, Total: 100, Stage: stage})
}
