// Package domain holds consumption tracking records and their storage contract.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TrackingType string

const (
	TrackingTypePostpaid TrackingType = "postpaid"
	TrackingTypePrepaid  TrackingType = "prepaid"
)

func (t TrackingType) Valid() bool {
	return t == TrackingTypePostpaid || t == TrackingTypePrepaid
}

// TrackingInfo is the type-specific payload of a tracking. It is either
// *PostpaidTrackingInfo or *PrepaidTrackingInfo.
type TrackingInfo interface {
	trackingType() TrackingType
	Contract() string
}

type PostpaidTrackingInfo struct {
	ContractNumber         string          `json:"contract_number"`
	CustomerNumber         string          `json:"customer_number"`
	IndexValue             decimal.Decimal `json:"index_value"`
	IndexDate              string          `json:"index_date"`
	LastIndexValue         decimal.Decimal `json:"last_index_value"`
	LastIndexDate          string          `json:"last_index_date"`
	TotalPowerConsumed     decimal.Decimal `json:"total_power_consumed"`
	TotalAccumulatedPeriod decimal.Decimal `json:"total_accumulated_period"`
	NextTrackingDate       string          `json:"next_tracking_date"`
}

func (*PostpaidTrackingInfo) trackingType() TrackingType { return TrackingTypePostpaid }
func (i *PostpaidTrackingInfo) Contract() string         { return i.ContractNumber }

type PrepaidTrackingInfo struct {
	ContractNumber         string          `json:"contract_number"`
	CustomerNumber         string          `json:"customer_number"`
	PowerRecharged         decimal.Decimal `json:"power_recharged"`
	PowerRechargedDate     string          `json:"power_recharged_date"`
	LastPowerRecharged     decimal.Decimal `json:"last_power_recharged"`
	LastPowerRechargedDate string          `json:"last_power_recharged_date"`
	TotalPowerRecharged    decimal.Decimal `json:"total_power_recharged"`
}

func (*PrepaidTrackingInfo) trackingType() TrackingType { return TrackingTypePrepaid }
func (i *PrepaidTrackingInfo) Contract() string         { return i.ContractNumber }

// ConsumptionTracking is one meter reading (postpaid) or recharge (prepaid).
// Infos holds the encoded Info and is kept in sync by the gorm hooks below.
type ConsumptionTracking struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	TrackingNumber string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"tracking_number"`
	TrackingType   TrackingType   `gorm:"type:varchar(16);not null;index:idx_tracking_contract,priority:1" json:"tracking_type"`
	ContractNumber string         `gorm:"type:varchar(64);not null;index:idx_tracking_contract,priority:2" json:"contract_number"`
	IsInvoiced     bool           `gorm:"not null;default:false" json:"is_invoiced"`
	Infos          datatypes.JSON `gorm:"not null" json:"-"`
	Info           TrackingInfo   `gorm:"-" json:"infos"`
	IsActivated    bool           `gorm:"not null;default:true" json:"is_activated"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime:false;index:idx_tracking_contract,priority:3" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

func (ConsumptionTracking) TableName() string { return "consumption_tracking" }

func (t *ConsumptionTracking) Postpaid() (*PostpaidTrackingInfo, bool) {
	info, ok := t.Info.(*PostpaidTrackingInfo)
	return info, ok
}

func (t *ConsumptionTracking) Prepaid() (*PrepaidTrackingInfo, bool) {
	info, ok := t.Info.(*PrepaidTrackingInfo)
	return info, ok
}

func (t *ConsumptionTracking) BeforeSave(*gorm.DB) error {
	if t.Info == nil {
		return fmt.Errorf("tracking %s has no infos", t.TrackingNumber)
	}
	if t.Info.trackingType() != t.TrackingType {
		return fmt.Errorf("tracking %s: %s infos on a %s tracking", t.TrackingNumber, t.Info.trackingType(), t.TrackingType)
	}
	raw, err := json.Marshal(t.Info)
	if err != nil {
		return fmt.Errorf("encode tracking infos: %w", err)
	}
	t.Infos = datatypes.JSON(raw)
	t.ContractNumber = t.Info.Contract()
	return nil
}

func (t *ConsumptionTracking) AfterFind(*gorm.DB) error {
	info, err := DecodeInfo(t.TrackingType, t.Infos)
	if err != nil {
		return err
	}
	t.Info = info
	return nil
}

// DecodeInfo decodes a stored payload into the variant matching trackingType.
func DecodeInfo(trackingType TrackingType, raw []byte) (TrackingInfo, error) {
	var info TrackingInfo
	switch trackingType {
	case TrackingTypePostpaid:
		info = &PostpaidTrackingInfo{}
	case TrackingTypePrepaid:
		info = &PrepaidTrackingInfo{}
	default:
		return nil, fmt.Errorf("unknown tracking type %q", trackingType)
	}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, fmt.Errorf("decode %s tracking infos: %w", trackingType, err)
	}
	return info, nil
}

// PostpaidEntry is one meter reading submitted for recording.
type PostpaidEntry struct {
	ContractNumber string          `json:"contract_number"`
	CustomerNumber string          `json:"customer_number,omitempty"`
	IndexValue     decimal.Decimal `json:"index_value"`
	IndexDate      string          `json:"index_date"`
}

// PrepaidEntry is one recharge submitted for recording.
type PrepaidEntry struct {
	ContractNumber     string          `json:"contract_number"`
	CustomerNumber     string          `json:"customer_number,omitempty"`
	PowerRecharged     decimal.Decimal `json:"power_recharged"`
	PowerRechargedDate string          `json:"power_recharged_date"`
}
