package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// SubmissionTimeLayout is the wire format of ReportSubmission.OccurredAt.
const SubmissionTimeLayout = "2006-01-02T15:04:05.000Z"

// Entities are classifier-extracted values keyed by entity name.
type Entities map[string]string

func (e Entities) Clone() Entities {
	if len(e) == 0 {
		return nil
	}
	out := make(Entities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// ReportSubmission is the payload of the report submission endpoint.
type ReportSubmission struct {
	OccurredAt        string `json:"fecha" validate:"required"`
	VictimSex         string `json:"sexo_victima" validate:"required,oneof=M F O"`
	VictimAge         int    `json:"edad_victima" validate:"min=0,max=120"`
	VictimCount       int    `json:"cantidad_victima" validate:"min=1"`
	VictimConditionID int    `json:"condicion_victima_id" validate:"gt=0"`
	GravityID         int    `json:"gravedad_victima_id" validate:"gt=0"`
	AccidentTypeID    int    `json:"tipo_accidente_id" validate:"gt=0"`
	LocationID        int    `json:"ubicacion_id" validate:"gt=0"`
}

type SubmissionResult struct {
	AccidentID string
}

var validate = validator.New()

// ValidateSubmission checks the payload against the submission contract.
func ValidateSubmission(s ReportSubmission) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid report submission: %w", err)
	}
	if _, err := time.Parse(SubmissionTimeLayout, s.OccurredAt); err != nil {
		return fmt.Errorf("invalid report submission: fecha %q: %w", s.OccurredAt, err)
	}
	return nil
}

// AccidentFilter holds the optional filters of the accident query endpoint.
// Zero values are "not set".
type AccidentFilter struct {
	LocationContains string
	Day              string // YYYY-MM-DD in the civic timezone
	AccidentTypeID   int
	GravityID        int
}

func (f AccidentFilter) Empty() bool {
	return strings.TrimSpace(f.LocationContains) == "" && f.Day == "" && f.AccidentTypeID == 0 && f.GravityID == 0
}

func (f AccidentFilter) Params() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(f.LocationContains); s != "" {
		v.Set("direccion_aproximada_contiene", s)
	}
	if f.Day != "" {
		v.Set("fecha_ocurrencia_dia", f.Day)
	}
	if f.AccidentTypeID > 0 {
		v.Set("tipo_accidente_id", strconv.Itoa(f.AccidentTypeID))
	}
	if f.GravityID > 0 {
		v.Set("gravedad_victima_id", strconv.Itoa(f.GravityID))
	}
	return v
}
