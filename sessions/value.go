package sessions

import "strings"

// Value is a stored session narrowed to its lifecycle state. It is one of
// Created, Active or Errored; callers switch on the concrete type.
type Value interface {
	State() State
	Data() TokenData
	isValue()
}

// Created is a session that has been issued but not yet bound to a running care flow.
type Created struct {
	TokenData
}

// Active is a session bound to a started care flow.
type Active struct {
	TokenData
}

// Errored is a session whose care flow failed to start. It is terminal.
type Errored struct {
	TokenData
}

func (Created) State() State { return StateCreated }
func (Active) State() State  { return StateActive }
func (Errored) State() State { return StateError }

func (c Created) Data() TokenData { return c.TokenData }
func (a Active) Data() TokenData  { return a.TokenData }
func (e Errored) Data() TokenData { return e.TokenData }

func (Created) isValue() {}
func (Active) isValue()  {}
func (Errored) isValue() {}

// Reason returns the stored error message explaining the failure.
func (e Errored) Reason() string { return e.ErrorMessage }

// ParseValue validates d and narrows it to the variant selected by its state.
func ParseValue(d TokenData) (Value, error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	switch d.State {
	case StateCreated:
		return Created{TokenData: d}, nil
	case StateActive:
		var errs ValidationErrors
		if d.CareflowID == "" {
			errs = errs.Add("careflowId", "is required for active sessions")
		}
		if d.StakeholderID == "" {
			errs = errs.Add("stakeholderId", "is required for active sessions")
		}
		if d.PatientID == "" {
			errs = errs.Add("patientId", "is required for active sessions")
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return Active{TokenData: d}, nil
	case StateError:
		if strings.TrimSpace(d.ErrorMessage) == "" {
			return nil, ValidationErrors{}.Add("errorMessage", "is required for sessions in error state")
		}
		return Errored{TokenData: d}, nil
	}
	return nil, ValidationErrors{}.Add("state", "must be one of created, active, error")
}
