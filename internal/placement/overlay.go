package placement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

var (
	// ErrNotFound is returned when a placement id is not on the page
	ErrNotFound = errors.New("placement not found")
	// ErrNilAsset is returned when adding a placement without an image
	ErrNilAsset = errors.New("signature asset has no image")
	// ErrInvalidPage is returned for negative page indices
	ErrInvalidPage = errors.New("invalid page index")
)

// Overlay is the per-page collection of placed signatures.
//
// At most one placement per page is selected. Every stored placement stays
// inside the fit rectangle it was last committed against. Overlay is not safe
// for concurrent use; callers serialize access.
type Overlay struct {
	limits Limits
	pages  map[int][]PlacedSignature
	obs    observers
}

// NewOverlay creates an empty overlay using lim for width bounds
func NewOverlay(lim Limits) *Overlay {
	if lim.MinFrac <= 0 || lim.MaxFrac <= 0 || lim.MinFrac > lim.MaxFrac {
		lim = DefaultLimits()
	}
	return &Overlay{
		limits: lim,
		pages:  make(map[int][]PlacedSignature),
	}
}

// Limits returns the width bounds of the overlay
func (o *Overlay) Limits() Limits {
	return o.limits
}

// Subscribe registers fn for change notifications. The returned function
// removes the subscription.
func (o *Overlay) Subscribe(fn func(Event)) func() {
	return o.obs.subscribe(fn)
}

// Add places asset at the default anchor on page, selects it and returns the
// new id. The default anchor is clamped into fit, so tall assets may start
// smaller than DefaultWidthFrac.
func (o *Overlay) Add(page int, asset *Asset, fit geometry.Rect) (string, error) {
	if page < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	if asset == nil || asset.Image == nil {
		return "", ErrNilAsset
	}

	p := PlacedSignature{
		ID:        uuid.NewString(),
		Asset:     asset,
		CX:        DefaultCX,
		CY:        DefaultCY,
		WidthFrac: DefaultWidthFrac,
		Selected:  true,
	}
	p = ClampToFit(p, fit, o.limits)

	list := o.pages[page]
	for j := range list {
		list[j].Selected = false
	}
	o.pages[page] = append(list, p)
	o.obs.emit(Event{Kind: EventAdded, Page: page, ID: p.ID})
	return p.ID, nil
}

// Update replaces the transform of placement id with that of next, clamped
// into fit. Identity, asset and selection are kept.
func (o *Overlay) Update(page int, id string, next PlacedSignature, fit geometry.Rect) error {
	i, err := o.index(page, id)
	if err != nil {
		return err
	}
	list := o.pages[page]
	list[i] = ClampToFit(list[i].WithTransform(next), fit, o.limits)
	o.obs.emit(Event{Kind: EventUpdated, Page: page, ID: id})
	return nil
}

// Select toggles selection of id. Selecting a placement clears any other
// selection on the page; selecting the already selected one clears it.
func (o *Overlay) Select(page int, id string) error {
	i, err := o.index(page, id)
	if err != nil {
		return err
	}
	list := o.pages[page]
	if list[i].Selected {
		list[i].Selected = false
		o.obs.emit(Event{Kind: EventDeselected, Page: page, ID: id})
		return nil
	}
	for j := range list {
		list[j].Selected = j == i
	}
	o.obs.emit(Event{Kind: EventSelected, Page: page, ID: id})
	return nil
}

// Deselect clears the selection on page
func (o *Overlay) Deselect(page int) {
	changed := false
	list := o.pages[page]
	for j := range list {
		if list[j].Selected {
			list[j].Selected = false
			changed = true
		}
	}
	if changed {
		o.obs.emit(Event{Kind: EventDeselected, Page: page})
	}
}

// Delete removes placement id from page
func (o *Overlay) Delete(page int, id string) error {
	i, err := o.index(page, id)
	if err != nil {
		return err
	}
	list := o.pages[page]
	o.pages[page] = append(list[:i:i], list[i+1:]...)
	if len(o.pages[page]) == 0 {
		delete(o.pages, page)
	}
	o.obs.emit(Event{Kind: EventDeleted, Page: page, ID: id})
	return nil
}

// RemovePage drops page and shifts the overlays of later pages down by one
func (o *Overlay) RemovePage(page int) {
	if page < 0 {
		return
	}
	shifted := make(map[int][]PlacedSignature, len(o.pages))
	for p, list := range o.pages {
		switch {
		case p < page:
			shifted[p] = list
		case p > page:
			shifted[p-1] = list
		}
	}
	o.pages = shifted
	o.obs.emit(Event{Kind: EventPageRemoved, Page: page})
}

// Placements returns a copy of the placements on page in insertion order
func (o *Overlay) Placements(page int) []PlacedSignature {
	list := o.pages[page]
	out := make([]PlacedSignature, len(list))
	copy(out, list)
	return out
}

// Get returns placement id on page
func (o *Overlay) Get(page int, id string) (PlacedSignature, bool) {
	i, err := o.index(page, id)
	if err != nil {
		return PlacedSignature{}, false
	}
	return o.pages[page][i], true
}

// Selected returns the id of the selected placement on page
func (o *Overlay) Selected(page int) (string, bool) {
	for _, p := range o.pages[page] {
		if p.Selected {
			return p.ID, true
		}
	}
	return "", false
}

// Pages returns the indices of pages that carry at least one placement
func (o *Overlay) Pages() []int {
	out := make([]int, 0, len(o.pages))
	for p, list := range o.pages {
		if len(list) > 0 {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// Count returns the number of placements across all pages
func (o *Overlay) Count() int {
	n := 0
	for _, list := range o.pages {
		n += len(list)
	}
	return n
}

func (o *Overlay) index(page int, id string) (int, error) {
	for i, p := range o.pages[page] {
		if p.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: page %d id %s", ErrNotFound, page, id)
}
