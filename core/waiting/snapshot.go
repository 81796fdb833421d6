package waiting

import "github.com/kilianp07/evstation/core/model"

// EntryView is a waiting entry enriched with a rough wait estimate, shown to
// users while they queue. The estimate assumes the category's rated power and
// only counts vehicles ahead in the same list; it is display-only and never
// feeds scheduling decisions.
type EntryView struct {
	model.QueueEntry
	EstWaitMin float64 `json:"est_wait_min"`
}

// Snapshot is the externally visible waiting-area state.
type Snapshot struct {
	Fast     []EntryView `json:"fast_queue"`
	Slow     []EntryView `json:"slow_queue"`
	Total    int         `json:"total_vehicles"`
	Capacity int         `json:"capacity"`
}

// Snapshot returns the current waiting-area view.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	snap := Snapshot{
		Fast:     viewList(q.fast, model.Fast),
		Slow:     viewList(q.slow, model.Slow),
		Total:    q.sizeLocked(),
		Capacity: q.capacity,
	}
	return snap
}

func viewList(list []model.QueueEntry, cat model.Category) []EntryView {
	power := cat.DefaultPowerKW()
	views := make([]EntryView, 0, len(list))
	ahead := 0.0
	for _, e := range list {
		est := (ahead + e.Vehicle.EnergyKWh) / power * 60
		views = append(views, EntryView{QueueEntry: e, EstWaitMin: model.Round2(est)})
		ahead += e.Vehicle.EnergyKWh
	}
	return views
}
