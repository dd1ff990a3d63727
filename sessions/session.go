package sessions

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Environment is the deployment tier a session was created for.
type Environment string

const (
	EnvironmentLocal        Environment = "local"
	EnvironmentTest         Environment = "test"
	EnvironmentDevelopment  Environment = "development"
	EnvironmentStaging      Environment = "staging"
	EnvironmentSandbox      Environment = "sandbox"
	EnvironmentProductionEU Environment = "production-eu"
	EnvironmentProductionUS Environment = "production-us"
	EnvironmentProductionUK Environment = "production-uk"
	EnvironmentProductionCA Environment = "production-ca"
)

var environments = map[Environment]struct{}{
	EnvironmentLocal:        {},
	EnvironmentTest:         {},
	EnvironmentDevelopment:  {},
	EnvironmentStaging:      {},
	EnvironmentSandbox:      {},
	EnvironmentProductionEU: {},
	EnvironmentProductionUS: {},
	EnvironmentProductionUK: {},
	EnvironmentProductionCA: {},
}

// IsValid reports whether e is one of the known deployment tiers.
func (e Environment) IsValid() bool {
	_, ok := environments[e]
	return ok
}

// IsProduction reports whether e is a production tier.
func (e Environment) IsProduction() bool {
	return e.IsValid() && strings.HasPrefix(string(e), "production")
}

// State is the lifecycle state of a session record.
type State string

const (
	StateCreated State = "created"
	StateActive  State = "active"
	StateError   State = "error"
)

// IsValid reports whether s is a known lifecycle state.
func (s State) IsValid() bool {
	switch s {
	case StateCreated, StateActive, StateError:
		return true
	}
	return false
}

// PatientIdentifier is a system/value pair identifying a patient in an external system.
type PatientIdentifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// CareflowData pins the care flow and the release it runs.
type CareflowData struct {
	ID        string `json:"id"`
	ReleaseID string `json:"releaseId"`
}

// TokenData is the canonical session payload stored for every session record.
// Field order is fixed and defines the canonical serialisation used to derive
// session ids.
type TokenData struct {
	PatientID            string             `json:"patientId,omitempty"`
	CareflowID           string             `json:"careflowId,omitempty"`
	StakeholderID        string             `json:"stakeholderId,omitempty"`
	OrgID                string             `json:"orgId"`
	TenantID             string             `json:"tenantId"`
	Environment          Environment        `json:"environment"`
	NaviStytchUserID     string             `json:"naviStytchUserId,omitempty"`
	CreatedAt            int64              `json:"createdAt"` // epoch milliseconds, 0 when unknown
	Exp                  int64              `json:"exp"`       // epoch seconds
	State                State              `json:"state"`
	ErrorMessage         string             `json:"errorMessage,omitempty"`
	CareflowDefinitionID string             `json:"careflowDefinitionId,omitempty"`
	PatientIdentifier    *PatientIdentifier `json:"patientIdentifier,omitempty"`
	TrackID              string             `json:"trackId,omitempty"`
	ActivityID           string             `json:"activityId,omitempty"`
	CareflowData         *CareflowData      `json:"careflowData,omitempty"`
}

// Normalize applies the schema defaults in place.
func (d *TokenData) Normalize() {
	if d.State == "" {
		d.State = StateCreated
	}
	if d.PatientIdentifier != nil && *d.PatientIdentifier == (PatientIdentifier{}) {
		d.PatientIdentifier = nil
	}
	if d.CareflowData != nil && *d.CareflowData == (CareflowData{}) {
		d.CareflowData = nil
	}
}

// Validate checks the payload against the session schema. It does not apply defaults.
func (d TokenData) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(d.OrgID) == "" {
		errs = errs.Add("orgId", "is required")
	}
	if strings.TrimSpace(d.TenantID) == "" {
		errs = errs.Add("tenantId", "is required")
	}
	if !d.Environment.IsValid() {
		errs = errs.Add("environment", "must be one of the known deployment tiers")
	}
	if d.CreatedAt < 0 {
		errs = errs.Add("createdAt", "must not be negative")
	}
	if d.Exp <= 0 {
		errs = errs.Add("exp", "must be a positive number")
	}
	if !d.State.IsValid() {
		errs = errs.Add("state", "must be one of created, active, error")
	}
	if d.PatientIdentifier != nil {
		if d.PatientIdentifier.System == "" {
			errs = errs.Add("patientIdentifier.system", "is required")
		}
		if d.PatientIdentifier.Value == "" {
			errs = errs.Add("patientIdentifier.value", "is required")
		}
	}
	if d.CareflowData != nil {
		if d.CareflowData.ID == "" {
			errs = errs.Add("careflowData.id", "is required")
		}
		if d.CareflowData.ReleaseID == "" {
			errs = errs.Add("careflowData.releaseId", "is required")
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ParseTokenData decodes a JSON session payload, applies defaults and validates it.
func ParseTokenData(raw []byte) (TokenData, error) {
	var d TokenData
	if err := json.Unmarshal(raw, &d); err != nil {
		return TokenData{}, errors.Wrap(err, "sessions.ParseTokenData decode")
	}
	d.Normalize()
	if err := d.Validate(); err != nil {
		return TokenData{}, err
	}
	return d, nil
}

// Clone returns a deep copy of d.
func (d TokenData) Clone() TokenData {
	c := d
	if d.PatientIdentifier != nil {
		pi := *d.PatientIdentifier
		c.PatientIdentifier = &pi
	}
	if d.CareflowData != nil {
		cd := *d.CareflowData
		c.CareflowData = &cd
	}
	return c
}
