// Package importer loads a directory of CSV exports into the record store.
// Every row goes through the same service operation an API call would use,
// so foreign keys, enums and value rules are enforced row by row.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orms/orms/internal/domain/billing"
	"github.com/orms/orms/internal/domain/clinical"
	"github.com/orms/orms/internal/domain/identity"
	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/domain/visit"
)

type ReferenceTarget interface {
	CreateMedication(ctx context.Context, m *reference.Medication) error
	CreateDepartment(ctx context.Context, d *reference.Department) error
}

type IdentityTarget interface {
	CreateDoctor(ctx context.Context, d *identity.Doctor) error
	CreatePatient(ctx context.Context, p *identity.Patient) error
	ImportUser(ctx context.Context, u *identity.User) error
}

type VisitTarget interface {
	ImportVisit(ctx context.Context, v *visit.Visit) error
}

type ClinicalTarget interface {
	CreateDiagnosis(ctx context.Context, d *clinical.Diagnosis) error
	CreatePrescription(ctx context.Context, p *clinical.Prescription) error
}

type BillingTarget interface {
	ImportBill(ctx context.Context, b *billing.Bill) error
	ImportService(ctx context.Context, l *billing.BillService) error
}

// Targets are the services rows are written through.
type Targets struct {
	Reference ReferenceTarget
	Identity  IdentityTarget
	Visits    VisitTarget
	Clinical  ClinicalTarget
	Billing   BillingTarget
}

// TableResult counts the outcome of one CSV file.
type TableResult struct {
	Table    string `json:"table"`
	Imported int    `json:"imported"`
	Failed   int    `json:"failed"`
	Skipped  bool   `json:"skipped,omitempty"`
}

type Summary struct {
	Tables []TableResult `json:"tables"`
}

func (s *Summary) Imported() int {
	n := 0
	for _, t := range s.Tables {
		n += t.Imported
	}
	return n
}

func (s *Summary) Failed() int {
	n := 0
	for _, t := range s.Tables {
		n += t.Failed
	}
	return n
}

// Table returns the result for name, or a zero result when it was never read.
func (s *Summary) Table(name string) TableResult {
	for _, t := range s.Tables {
		if t.Table == name {
			return t
		}
	}
	return TableResult{Table: name}
}

type Importer struct {
	targets Targets
	logger  zerolog.Logger
}

func New(targets Targets, logger zerolog.Logger) *Importer {
	return &Importer{targets: targets, logger: logger.With().Str("component", "importer").Logger()}
}

type table struct {
	name   string
	insert func(ctx context.Context, r record) error
}

// order lists the files parents first.
func (im *Importer) order() []table {
	return []table{
		{"sex", im.checkSex},
		{"visit_status", im.checkVisitStatus},
		{"payment_methods", im.checkPaymentMethod},
		{"medications", im.medication},
		{"departments", im.department},
		{"doctors", im.doctor},
		{"patients", im.patient},
		{"users", im.user},
		{"visits", im.visit},
		{"diagnoses", im.diagnosis},
		{"prescriptions", im.prescription},
		{"bills", im.bill},
		{"bill_services", im.billService},
	}
}

// Tables is the import order by file stem.
func Tables() []string {
	im := &Importer{}
	var names []string
	for _, t := range im.order() {
		names = append(names, t.name)
	}
	return names
}

// Run imports every known CSV file found in dir. A missing file is skipped
// and a rejected row is logged and counted; neither stops the run. Run only
// fails when dir cannot be read or ctx is cancelled.
func (im *Importer) Run(ctx context.Context, dir string) (*Summary, error) {
	if info, err := os.Stat(dir); err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, errors.New(dir + " is not a directory")
	}

	sum := &Summary{}
	for _, t := range im.order() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := im.importFile(ctx, filepath.Join(dir, t.name+".csv"), t)
		if err != nil {
			return sum, err
		}
		sum.Tables = append(sum.Tables, res)
	}
	im.logger.Info().Int("imported", sum.Imported()).Int("failed", sum.Failed()).Msg("import finished")
	return sum, nil
}

func (im *Importer) importFile(ctx context.Context, path string, t table) (TableResult, error) {
	res := TableResult{Table: t.name}
	log := im.logger.With().Str("table", t.name).Logger()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("file", path).Msg("file not found, skipping")
		res.Skipped = true
		return res, nil
	}
	if err != nil {
		return res, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	header, err := rd.Read()
	if errors.Is(err, io.EOF) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	line := 1
	for {
		cells, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			log.Warn().Int("line", line).Err(err).Msg("unreadable row")
			res.Failed++
			continue
		}
		if err := t.insert(ctx, newRecord(t.name, line, header, cells)); err != nil {
			log.Warn().Int("line", line).Err(err).Msg("row rejected")
			res.Failed++
			continue
		}
		res.Imported++
	}
	log.Info().Int("imported", res.Imported).Int("failed", res.Failed).Msg("table imported")
	return res, nil
}
