package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"laptop_tracker/models"
)

func (c *Coordinator) ListLaptops(ctx context.Context) (out []models.Laptop, err error) {
	err = c.store.View(ctx, func(tx Tx) error {
		out, err = tx.ListLaptops()
		return err
	})
	return out, err
}

func (c *Coordinator) GetLaptop(ctx context.Context, id string) (out *models.Laptop, err error) {
	err = c.store.View(ctx, func(tx Tx) error {
		out, err = tx.GetLaptop(strings.TrimSpace(id))
		return err
	})
	return out, err
}

// GetAssignment reads one ledger row. Rows outlive their laptop.
func (c *Coordinator) GetAssignment(ctx context.Context, id string) (out *models.Assignment, err error) {
	err = c.store.View(ctx, func(tx Tx) error {
		out, err = tx.GetAssignment(strings.TrimSpace(id))
		return err
	})
	return out, err
}

func (c *Coordinator) ListPersons(ctx context.Context) (out []models.Person, err error) {
	err = c.store.View(ctx, func(tx Tx) error {
		out, err = tx.ListPersons()
		return err
	})
	return out, err
}

func (c *Coordinator) ListBiometrics(ctx context.Context) (out []models.BiometricDevice, err error) {
	err = c.store.View(ctx, func(tx Tx) error {
		out, err = tx.ListBiometrics()
		return err
	})
	return out, err
}

// HistoryQuery filters and orders the ledger the way the history panel does.
type HistoryQuery struct {
	LaptopID string
	State    string // "", "open", "returned"
	Search   string // matches user, biometric serial, laptop id or model
	SortBy   string // "date" (default), "laptop", "user"
	Order    string // "desc" (default), "asc"
}

func (q HistoryQuery) validate() error {
	switch q.State {
	case "", "open", "returned":
	default:
		return fmt.Errorf("%w: state must be open or returned", ErrValidation)
	}
	switch q.SortBy {
	case "", "date", "laptop", "user":
	default:
		return fmt.Errorf("%w: sortBy must be date, laptop or user", ErrValidation)
	}
	switch q.Order {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("%w: order must be asc or desc", ErrValidation)
	}
	return nil
}

// ListAssignments returns the full ledger snapshot matching q.
func (c *Coordinator) ListAssignments(ctx context.Context, q HistoryQuery) ([]models.Assignment, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	var (
		rows    []models.Assignment
		laptops []models.Laptop
	)
	err := c.store.View(ctx, func(tx Tx) error {
		var err error
		if rows, err = tx.ListAssignments(); err != nil {
			return err
		}
		if q.Search != "" {
			laptops, err = tx.ListLaptops()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	modelOf := make(map[string]string, len(laptops))
	for _, l := range laptops {
		modelOf[l.ID] = strings.ToLower(l.Model)
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	laptopID := strings.TrimSpace(q.LaptopID)

	out := rows[:0]
	for _, a := range rows {
		if laptopID != "" && a.LaptopID != laptopID {
			continue
		}
		if (q.State == "open" && !a.Open()) || (q.State == "returned" && a.Open()) {
			continue
		}
		if term != "" && !matchesSearch(a, modelOf[a.LaptopID], term) {
			continue
		}
		out = append(out, a)
	}
	sortAssignments(out, q.SortBy, q.Order == "asc")
	return out, nil
}

func matchesSearch(a models.Assignment, model, term string) bool {
	if strings.Contains(strings.ToLower(a.UserName), term) ||
		strings.Contains(strings.ToLower(a.LaptopID), term) ||
		strings.Contains(model, term) {
		return true
	}
	return a.BiometricSerial != nil && strings.Contains(strings.ToLower(*a.BiometricSerial), term)
}

func sortAssignments(rows []models.Assignment, by string, asc bool) {
	less := func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch by {
		case "laptop":
			if a.LaptopID != b.LaptopID {
				return a.LaptopID < b.LaptopID
			}
		case "user":
			if ka, kb := NameKey(a.UserName), NameKey(b.UserName); ka != kb {
				return ka < kb
			}
		}
		if !a.AssignedAt.Equal(b.AssignedAt) {
			return a.AssignedAt.Before(b.AssignedAt)
		}
		return a.ID < b.ID
	}
	if asc {
		sort.SliceStable(rows, less)
		return
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(j, i) })
}

type Stats struct {
	Total               int `json:"total"`
	Available           int `json:"available"`
	InUse               int `json:"inUse"`
	Maintenance         int `json:"maintenance"`
	OpenAssignments     int `json:"openAssignments"`
	ReturnedAssignments int `json:"returnedAssignments"`
}

// Board is what the public status page shows.
type Board struct {
	Laptops []models.Laptop `json:"laptops"`
	Stats   Stats           `json:"stats"`
}

func (c *Coordinator) Board(ctx context.Context) (*Board, error) {
	var (
		laptops []models.Laptop
		rows    []models.Assignment
	)
	err := c.store.View(ctx, func(tx Tx) error {
		var err error
		if laptops, err = tx.ListLaptops(); err != nil {
			return err
		}
		rows, err = tx.ListAssignments()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Board{Laptops: laptops, Stats: computeStats(laptops, rows)}, nil
}

func computeStats(laptops []models.Laptop, rows []models.Assignment) Stats {
	s := Stats{Total: len(laptops)}
	for _, l := range laptops {
		switch l.Status {
		case models.StatusAvailable:
			s.Available++
		case models.StatusInUse:
			s.InUse++
		case models.StatusMaintenance:
			s.Maintenance++
		}
	}
	for _, a := range rows {
		if a.Open() {
			s.OpenAssignments++
		} else {
			s.ReturnedAssignments++
		}
	}
	return s
}

// Inconsistency describes one place where the denormalized laptop fields
// and the ledger disagree.
type Inconsistency struct {
	LaptopID     string `json:"laptopId"`
	AssignmentID string `json:"assignmentId,omitempty"`
	Problem      string `json:"problem"`
}

// VerifyConsistency checks the cross-entity invariant over the whole store
// without changing anything.
func (c *Coordinator) VerifyConsistency(ctx context.Context) ([]Inconsistency, error) {
	var (
		laptops []models.Laptop
		rows    []models.Assignment
	)
	err := c.store.View(ctx, func(tx Tx) error {
		var err error
		if laptops, err = tx.ListLaptops(); err != nil {
			return err
		}
		rows, err = tx.ListAssignments()
		return err
	})
	if err != nil {
		return nil, err
	}
	return findInconsistencies(laptops, rows), nil
}

func findInconsistencies(laptops []models.Laptop, rows []models.Assignment) []Inconsistency {
	open := map[string][]models.Assignment{}
	for _, a := range rows {
		if a.Open() {
			open[a.LaptopID] = append(open[a.LaptopID], a)
		}
	}
	var out []Inconsistency
	known := make(map[string]bool, len(laptops))
	for _, l := range laptops {
		known[l.ID] = true
		o := open[l.ID]
		switch {
		case len(o) > 1:
			out = append(out, Inconsistency{LaptopID: l.ID, Problem: fmt.Sprintf("%d open assignments", len(o))})
		case l.Status == models.StatusInUse && len(o) == 0:
			out = append(out, Inconsistency{LaptopID: l.ID, Problem: "in use without an open assignment"})
		case l.Status != models.StatusInUse && len(o) == 1:
			out = append(out, Inconsistency{LaptopID: l.ID, AssignmentID: o[0].ID, Problem: fmt.Sprintf("%s with an open assignment", l.Status)})
		case l.Status == models.StatusInUse && (l.CurrentHolder == nil || *l.CurrentHolder != o[0].UserName):
			out = append(out, Inconsistency{LaptopID: l.ID, AssignmentID: o[0].ID, Problem: "current holder differs from open assignment"})
		}
		if l.Status != models.StatusInUse && l.CurrentHolder != nil {
			out = append(out, Inconsistency{LaptopID: l.ID, Problem: "holder set while not in use"})
		}
	}
	for laptopID, o := range open {
		if known[laptopID] {
			continue
		}
		for _, a := range o {
			out = append(out, Inconsistency{LaptopID: laptopID, AssignmentID: a.ID, Problem: "open assignment for missing laptop"})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LaptopID != out[j].LaptopID {
			return out[i].LaptopID < out[j].LaptopID
		}
		return out[i].AssignmentID < out[j].AssignmentID
	})
	return out
}
