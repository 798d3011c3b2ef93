package service

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"example.com/backstage/services/yard/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// notblank rejects whitespace-only strings that required lets through
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// RegisterRequest defines the request to register a truck arrival
type RegisterRequest struct {
	// ID is optional; upstream gate systems pass their gate pass id so that
	// redelivered registrations are idempotent.
	ID              string  `json:"id" validate:"omitempty,max=36"`
	TruckNumber     string  `json:"truck_number" validate:"required,notblank"`
	VehicleNumber   string  `json:"vehicle_number" validate:"required,notblank"`
	DriverName      string  `json:"driver_name" validate:"required,notblank"`
	DriverMobile    string  `json:"driver_mobile" validate:"required,notblank"`
	DriverLicense   string  `json:"driver_license"`
	Transporter     string  `json:"transporter" validate:"required,notblank"`
	SupplierName    string  `json:"supplier_name"`
	DepotName       string  `json:"depot_name" validate:"required,notblank"`
	LRNumber        string  `json:"lr_number"`
	RTOCapacity     float64 `json:"rto_capacity" validate:"gte=0"`
	LoadingCapacity float64 `json:"loading_capacity" validate:"gte=0"`
	MaterialType    string  `json:"material_type" validate:"required,notblank"`
	ArrivalDateTime string  `json:"arrival_date_time" validate:"required,notblank"`
}

// AdmitInsideRequest defines the request to admit a truck into the yard
type AdmitInsideRequest struct {
	NextMilestone string `json:"next_milestone" validate:"required,notblank"`
}

// WeightReadingRequest defines a weighbridge reading
type WeightReadingRequest struct {
	WeightKg float64 `json:"weight_kg" validate:"gt=0"`
	// MaterialType defaults to the journey's material when empty
	MaterialType string `json:"material_type"`
}

// InvoiceRequest defines the invoice weight entered for reconciliation
type InvoiceRequest struct {
	InvoiceWeight float64 `json:"invoice_weight" validate:"gt=0"`
	InvoiceNumber string  `json:"invoice_number" validate:"required,notblank"`
}

// ApprovalRequest resolves a pending weight discrepancy
type ApprovalRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
}

// ReplaceTruckRequest carries the replacement truck identity. Required fields
// are checked by the transshipment rules rather than tags.
type ReplaceTruckRequest struct {
	TruckNumber   string `json:"truck_number"`
	VehicleNumber string `json:"vehicle_number"`
	DriverName    string `json:"driver_name"`
	DriverMobile  string `json:"driver_mobile"`
	DriverLicense string `json:"driver_license"`
	Transporter   string `json:"transporter"`
	SupplierName  string `json:"supplier_name"`
	Reason        string `json:"reason"`
}

// validateRequest runs tag validation and reports failures as a Validation error
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fields []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	if len(fields) == 0 {
		return apperr.Wrap(apperr.Validation, err, "invalid request")
	}
	return apperr.Wrap(apperr.Validation, err, "invalid fields: "+strings.Join(fields, ", "))
}

// arrivalLayouts are tried in order; layouts without a zone use the yard's
var arrivalLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseArrival parses an arrival timestamp, interpreting zone-less input in loc
func ParseArrival(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range arrivalLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.New(apperr.Validation, "arrival date time %q is not a valid timestamp", value)
}
