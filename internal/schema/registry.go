package schema

import "fmt"

// Scale is the number of decimal places used by a scaled integer.
// Example: Scale=8 means the integer value is scaled by 1e8.
type Scale int32

// ScaleSpec defines scaling for common numeric fields.
type ScaleSpec struct {
	PriceScale    Scale
	QuantityScale Scale
	NotionalScale Scale
	FeeScale      Scale
}

// VenueID is the numeric identifier for a venue.
type VenueID uint16

// InstrumentID is the numeric identifier for an instrument.
type InstrumentID uint32

// Venue describes a trading venue.
type Venue struct {
	ID   VenueID
	Name string
}

// Instrument describes a tradable instrument and its trading rules.
// Immutable after registration.
type Instrument struct {
	ID         InstrumentID
	VenueID    VenueID
	Name       string
	Type       InstrumentType
	BaseCcy    string
	QuoteCcy   string
	SettleCcy  string
	TickSize   Price
	LotSize    Quantity
	MinSize    Quantity
	Multiplier Quantity
	TradeMode  TradeMode
	Scale      ScaleSpec
}

// Registry stores venue and instrument mappings in a compact form.
type Registry struct {
	venues     []Venue
	insts      []Instrument
	venueByName map[string]VenueID
	instByName  map[string]InstrumentID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		venueByName: make(map[string]VenueID),
		instByName:  make(map[string]InstrumentID),
	}
}

// AddVenue registers a new venue and returns its ID.
func (r *Registry) AddVenue(name string) (VenueID, error) {
	if name == "" {
		return 0, fmt.Errorf("venue name is empty")
	}
	if id, ok := r.venueByName[name]; ok {
		return id, fmt.Errorf("venue already exists: %s", name)
	}
	id := VenueID(len(r.venues) + 1)
	r.venues = append(r.venues, Venue{ID: id, Name: name})
	r.venueByName[name] = id
	return id, nil
}

// AddInstrument registers a new instrument and returns its ID. The
// instrument's ID and base/quote currencies are filled in from the name
// when unset.
func (r *Registry) AddInstrument(inst Instrument) (InstrumentID, error) {
	if inst.Name == "" {
		return 0, fmt.Errorf("instrument name is empty")
	}
	if inst.VenueID == 0 {
		return 0, fmt.Errorf("venue id is invalid")
	}
	if _, ok := r.Venue(inst.VenueID); !ok {
		return 0, fmt.Errorf("venue id not found: %d", inst.VenueID)
	}
	if id, ok := r.instByName[inst.Name]; ok {
		return id, fmt.Errorf("instrument already exists: %s", inst.Name)
	}
	if inst.TickSize <= 0 {
		return 0, fmt.Errorf("instrument tick size must be positive: %s", inst.Name)
	}
	if inst.LotSize <= 0 {
		return 0, fmt.Errorf("instrument lot size must be positive: %s", inst.Name)
	}
	if inst.Type == InstTypeUnknown {
		t, err := InstTypeFromName(inst.Name)
		if err != nil {
			return 0, err
		}
		inst.Type = t
	}
	if inst.BaseCcy == "" || inst.QuoteCcy == "" {
		base, quote, err := BaseQuoteFromName(inst.Name)
		if err != nil {
			return 0, err
		}
		inst.BaseCcy, inst.QuoteCcy = base, quote
	}
	if inst.SettleCcy == "" {
		inst.SettleCcy = inst.QuoteCcy
	}

	id := InstrumentID(len(r.insts) + 1)
	inst.ID = id
	r.insts = append(r.insts, inst)
	r.instByName[inst.Name] = id
	return id, nil
}

// Venue returns the venue by ID.
func (r *Registry) Venue(id VenueID) (Venue, bool) {
	if id == 0 || int(id) > len(r.venues) {
		return Venue{}, false
	}
	return r.venues[id-1], true
}

// Instrument returns the instrument by ID.
func (r *Registry) Instrument(id InstrumentID) (Instrument, bool) {
	if id == 0 || int(id) > len(r.insts) {
		return Instrument{}, false
	}
	return r.insts[id-1], true
}

// InstrumentCount returns the number of registered instruments.
func (r *Registry) InstrumentCount() int {
	return len(r.insts)
}

// InstrumentAt returns the instrument by zero-based index.
func (r *Registry) InstrumentAt(index int) (Instrument, bool) {
	if index < 0 || index >= len(r.insts) {
		return Instrument{}, false
	}
	return r.insts[index], true
}

// VenueIDByName returns the venue ID for a name.
func (r *Registry) VenueIDByName(name string) (VenueID, bool) {
	id, ok := r.venueByName[name]
	return id, ok
}

// InstrumentIDByName returns the instrument ID for a name.
func (r *Registry) InstrumentIDByName(name string) (InstrumentID, bool) {
	id, ok := r.instByName[name]
	return id, ok
}
