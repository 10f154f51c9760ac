package submission

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestCreateSubmissionInput_Validate(t *testing.T) {
	valid := CreateSubmissionInput{
		ClientName: "Bäckerei Huber GmbH",
		DocType:    "invoice",
		Period:     "2026-07",
	}

	tests := []struct {
		name      string
		mutate    func(*CreateSubmissionInput)
		wantField string
	}{
		{"valid", func(in *CreateSubmissionInput) {}, ""},
		{"empty client name", func(in *CreateSubmissionInput) { in.ClientName = "  " }, "client_name"},
		{"client name too long", func(in *CreateSubmissionInput) { in.ClientName = strings.Repeat("x", 201) }, "client_name"},
		{"unknown doc type", func(in *CreateSubmissionInput) { in.DocType = "screenshot" }, "doc_type"},
		{"bad period", func(in *CreateSubmissionInput) { in.Period = "July 2026" }, "period"},
		{"bad month", func(in *CreateSubmissionInput) { in.Period = "2026-13" }, "period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !asValidationError(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, verr.Field)
			}
		})
	}
}

func TestUpdateSubmissionInput_DatevAccountLimit(t *testing.T) {
	// 20 characters is the longest accepted DATEV account number.
	ok := UpdateSubmissionInput{DatevAccount: strPtr(strings.Repeat("4", 20))}
	if err := ok.Validate(); err != nil {
		t.Fatalf("20-char DATEV account should validate, got %v", err)
	}

	for _, n := range []int{21, 25} {
		in := UpdateSubmissionInput{DatevAccount: strPtr(strings.Repeat("4", n))}
		err := in.Validate()
		var verr *ValidationError
		if !asValidationError(err, &verr) {
			t.Fatalf("%d chars: expected ValidationError, got %v", n, err)
		}
		if verr.Field != "datev_account" {
			t.Errorf("expected field datev_account, got %q", verr.Field)
		}
		if !strings.Contains(verr.Message, "cannot exceed 20 characters") {
			t.Errorf("expected limit message, got %q", verr.Message)
		}
	}
}

func TestUpdateSubmissionInput_Validate(t *testing.T) {
	if err := (&UpdateSubmissionInput{}).Validate(); err == nil {
		t.Error("empty update should be rejected")
	}

	bad := UpdateSubmissionInput{Status: strPtr("done")}
	if err := bad.Validate(); err == nil {
		t.Error("unknown status should be rejected")
	}

	good := UpdateSubmissionInput{Status: strPtr("reviewed")}
	if err := good.Validate(); err != nil {
		t.Errorf("reviewed status should validate, got %v", err)
	}
}

func TestCreateExportInput_Validate(t *testing.T) {
	good := CreateExportInput{Format: "datev-csv", Period: "2026-07"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	if err := (&CreateExportInput{Format: "pdf", Period: "2026-07"}).Validate(); err == nil {
		t.Error("unknown format should be rejected")
	}
	if err := (&CreateExportInput{Format: "datev-csv", Period: "2026"}).Validate(); err == nil {
		t.Error("bad period should be rejected")
	}
}

func asValidationError(err error, target **ValidationError) bool {
	if err == nil {
		return false
	}
	v, ok := err.(*ValidationError)
	if ok {
		*target = v
	}
	return ok
}
