package model

import (
	"strings"
	"time"
)

// Base model fields shared by all models
type Base struct {
	UUID      string    `json:"uuid" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status is the lifecycle state of a journey
type Status string

const (
	// StatusPending is set at registration
	StatusPending Status = "Pending"
	// StatusAtGate is set once the gate pass is issued
	StatusAtGate Status = "AtGate"
	// StatusInside is set once the truck is admitted into the yard
	StatusInside Status = "Inside"
	// StatusCompleted is set when the routed milestone is processed
	StatusCompleted Status = "Completed"
	// StatusExited is set when the truck leaves the checkpoint
	StatusExited Status = "Exited"
)

// IsTerminal reports whether no further mutation is permitted
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExited
}

// Milestone is the next checkpoint a truck inside the yard is routed to
type Milestone string

const (
	// MilestoneNone means no routing hint is set
	MilestoneNone Milestone = ""
	// MilestoneWeighBridge routes the truck to the weighbridge
	MilestoneWeighBridge Milestone = "WeighBridge"
	// MilestoneInternalParking routes the truck to internal parking
	MilestoneInternalParking Milestone = "InternalParking"
)

// MaterialType classifies the load
type MaterialType string

const (
	// MaterialFG is finished goods
	MaterialFG MaterialType = "FG"
	// MaterialRM is raw material
	MaterialRM MaterialType = "RM"
	// MaterialPM is packing material
	MaterialPM MaterialType = "PM"
	// MaterialOther is anything else
	MaterialOther MaterialType = "other"
)

// ParseMaterialType normalises a material type, reporting whether it is known
func ParseMaterialType(s string) (MaterialType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FG":
		return MaterialFG, true
	case "RM":
		return MaterialRM, true
	case "PM":
		return MaterialPM, true
	case "OTHER":
		return MaterialOther, true
	default:
		return "", false
	}
}

// ParseMilestone converts a string to a Milestone
func ParseMilestone(s string) (Milestone, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weighbridge":
		return MilestoneWeighBridge, true
	case "internalparking":
		return MilestoneInternalParking, true
	default:
		return MilestoneNone, false
	}
}

// ParseStatus converts a string to a Status
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusPending, StatusAtGate, StatusInside, StatusCompleted, StatusExited} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

// ApprovalStatus is the state of the weight discrepancy approval gate
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = "none"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// TruckIdentity holds the fields replaced by a transshipment
type TruckIdentity struct {
	TruckNumber   string `json:"truck_number" gorm:"column:truck_number;index"`
	VehicleNumber string `json:"vehicle_number" gorm:"column:vehicle_number;index"`
	DriverName    string `json:"driver_name" gorm:"column:driver_name"`
	DriverMobile  string `json:"driver_mobile" gorm:"column:driver_mobile"`
	DriverLicense string `json:"driver_license" gorm:"column:driver_license"`
	Transporter   string `json:"transporter" gorm:"column:transporter"`
	SupplierName  string `json:"supplier_name" gorm:"column:supplier_name"`
}

// Logistics holds the load and paperwork details of a journey
type Logistics struct {
	DepotName       string       `json:"depot_name" gorm:"column:depot_name"`
	LRNumber        string       `json:"lr_number" gorm:"column:lr_number"`
	RTOCapacity     float64      `json:"rto_capacity" gorm:"column:rto_capacity"`
	LoadingCapacity float64      `json:"loading_capacity" gorm:"column:loading_capacity"`
	MaterialType    MaterialType `json:"material_type" gorm:"column:material_type"`
}

// OriginalTruckSnapshot is the frozen identity of a replaced truck
type OriginalTruckSnapshot struct {
	TruckIdentity
	ReplacedAt           time.Time `json:"replaced_at"`
	ReplacedBy           string    `json:"replaced_by"`
	ReasonForReplacement string    `json:"reason_for_replacement"`
}

// WeightReading is a single weighbridge reading
type WeightReading struct {
	SequenceNumber int          `json:"sequence_number"`
	WeightKg       float64      `json:"weight_kg"`
	MaterialType   MaterialType `json:"material_type"`
	RecordedAt     time.Time    `json:"recorded_at"`
	RecordedBy     string       `json:"recorded_by,omitempty"`
}

// WeightRecord accumulates readings and reconciles them against the invoice.
// AverageWeight and DifferencePercentage are derived and recomputed on every mutation.
type WeightRecord struct {
	Readings             []WeightReading `json:"readings"`
	InvoiceWeight        *float64        `json:"invoice_weight,omitempty"`
	InvoiceNumber        *string         `json:"invoice_number,omitempty"`
	AverageWeight        float64         `json:"average_weight"`
	DifferencePercentage *float64        `json:"difference_percentage,omitempty"`
	ApprovalStatus       ApprovalStatus  `json:"approval_status"`
	ResolvedBy           string          `json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time      `json:"resolved_at,omitempty"`
	ProcessingComplete   bool            `json:"processing_complete"`
	ProcessedBy          string          `json:"processed_by,omitempty"`
}

// TruckJourney is one physical visit of a truck to the yard
type TruckJourney struct {
	Base
	TruckIdentity `gorm:"embedded"`
	Logistics     `gorm:"embedded"`

	ArrivalDateTime time.Time  `json:"arrival_date_time" gorm:"column:arrival_date_time"`
	ExitedAt        *time.Time `json:"exited_at" gorm:"column:exited_at"`
	ProcessedAt     *time.Time `json:"processed_at" gorm:"column:processed_at"`

	Status        Status    `json:"status" gorm:"column:status;index"`
	NextMilestone Milestone `json:"next_milestone" gorm:"column:next_milestone;index"`

	IsTransshipment    bool                    `json:"is_transshipment" gorm:"column:is_transshipment"`
	OriginalTruckInfo  *OriginalTruckSnapshot  `json:"original_truck_info" gorm:"column:original_truck_info;serializer:json"`
	ReplacementHistory []OriginalTruckSnapshot `json:"replacement_history" gorm:"column:replacement_history;serializer:json"`

	WeightData *WeightRecord `json:"weight_data" gorm:"column:weight_data;serializer:json"`

	CreatedBy string `json:"created_by" gorm:"column:created_by"`
	UpdatedBy string `json:"updated_by" gorm:"column:updated_by"`
	Version   int    `json:"version" gorm:"column:version;not null;default:1"`
}

// TableName pins the table name
func (TruckJourney) TableName() string {
	return "truck_journeys"
}

// Identity returns a copy of the journey's identity fields
func (j *TruckJourney) Identity() TruckIdentity {
	return j.TruckIdentity
}
