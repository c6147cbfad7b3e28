package interval

import (
	"strings"
	"time"

	"github.com/roach88/eventmerge/internal/model"
)

// TitleSeparator joins the titles of folded records.
const TitleSeparator = " & "

// DescriptionSeparator joins the descriptions of folded records.
const DescriptionSeparator = "\n\n"

// Plan is the result of a merge pass.
//
// Every input record appears either in Unchanged or, through its ID, in
// Removals. Each Insertions entry replaces one merge-group.
type Plan struct {
	// Unchanged holds input records that overlapped nothing, in input order.
	Unchanged []model.Record

	// Removals lists the IDs of every record consumed by a merge-group,
	// in input order, each at most once.
	Removals []string

	// Insertions holds one merged record per merge-group, ascending by
	// StartTime.
	Insertions []model.NewRecord
}

// IsNoop reports whether applying p would change nothing.
func (p Plan) IsNoop() bool {
	return len(p.Removals) == 0 && len(p.Insertions) == 0
}

// Result returns the records p would leave behind, ascending by StartTime.
// Inserted records have no ID. Ties keep unchanged records first.
func (p Plan) Result() []model.Record {
	out := make([]model.Record, 0, len(p.Unchanged)+len(p.Insertions))
	u, i := 0, 0
	for u < len(p.Unchanged) || i < len(p.Insertions) {
		if i >= len(p.Insertions) ||
			(u < len(p.Unchanged) && !p.Insertions[i].StartTime.Before(p.Unchanged[u].StartTime)) {
			out = append(out, p.Unchanged[u])
			u++
			continue
		}
		ins := p.Insertions[i]
		out = append(out, model.Record{
			OwnerID:      ins.OwnerID,
			Title:        ins.Title,
			Description:  ins.Description,
			Status:       ins.Status,
			StartTime:    ins.StartTime,
			EndTime:      ins.EndTime,
			Participants: ins.Participants,
		})
		i++
	}
	return out
}

// Overlaps reports whether next, which starts no earlier than acc, overlaps
// acc under the inclusive boundary rule.
func Overlaps(acc, next model.Record) bool {
	return !next.StartTime.After(acc.EndTime)
}

// group accumulates one merge-group. It never aliases the input records.
type group struct {
	first        model.Record
	merged       bool
	title        strings.Builder
	description  string
	endTime      time.Time
	participants *model.ParticipantSet
}

func newGroup(r model.Record) *group {
	g := &group{first: r, endTime: r.EndTime, description: r.Description}
	g.title.WriteString(r.Title)
	return g
}

func (g *group) overlaps(r model.Record) bool {
	return Overlaps(model.Record{EndTime: g.endTime}, r)
}

func (g *group) fold(r model.Record) {
	if !g.merged {
		g.participants = model.NewParticipantSet(g.first.Participants...)
		g.merged = true
	}
	if r.EndTime.After(g.endTime) {
		g.endTime = r.EndTime
	}
	g.participants.Add(r.Participants...)
	g.title.WriteString(TitleSeparator)
	g.title.WriteString(r.Title)
	g.description = joinDescriptions(g.description, r.Description)
}

func (g *group) record(now time.Time) model.NewRecord {
	return model.NewRecord{
		OwnerID:      g.first.OwnerID,
		Title:        g.title.String(),
		Description:  g.description,
		Status:       model.DeriveStatus(g.first.StartTime, g.endTime, now),
		StartTime:    g.first.StartTime,
		EndTime:      g.endTime,
		Participants: g.participants.Slice(),
	}
}

func joinDescriptions(acc, next string) string {
	switch {
	case acc == "":
		return next
	case next == "":
		return acc
	default:
		return strings.TrimSpace(acc + DescriptionSeparator + next)
	}
}

// Merge partitions ordered into unchanged records and merge-groups and
// materialises each merge-group as one new record. now is used only to
// derive the status of merged records.
//
// ordered MUST be ascending by StartTime. Equal start times fold in input
// order.
func Merge(ordered []model.Record, now time.Time) Plan {
	var plan Plan
	if len(ordered) < 2 {
		plan.Unchanged = append(plan.Unchanged, ordered...)
		return plan
	}

	acc := newGroup(ordered[0])
	flush := func() {
		if acc.merged {
			plan.Insertions = append(plan.Insertions, acc.record(now))
			return
		}
		plan.Unchanged = append(plan.Unchanged, acc.first)
	}

	for _, curr := range ordered[1:] {
		if acc.overlaps(curr) {
			if !acc.merged {
				plan.Removals = append(plan.Removals, acc.first.ID)
			}
			plan.Removals = append(plan.Removals, curr.ID)
			acc.fold(curr)
			continue
		}
		flush()
		acc = newGroup(curr)
	}
	flush()

	return plan
}
