package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	"github.com/smallbiznis/utilitybilling/internal/observability/metrics"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const readingDateLayout = "2006-01-02"

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    trackingdomain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	genID   *snowflake.Node
	repo    trackingdomain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) trackingdomain.Service {
	return &Service{
		log:     p.Log.Named("tracking.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) CreatePostpaidBatch(ctx context.Context, entries []trackingdomain.PostpaidEntry) ([]trackingdomain.PostpaidEntry, error) {
	if _, err := s.RecordPostpaid(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) CreatePrepaidBatch(ctx context.Context, entries []trackingdomain.PrepaidEntry) ([]trackingdomain.PrepaidEntry, error) {
	if _, err := s.RecordPrepaid(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) RecordPostpaid(ctx context.Context, entries []trackingdomain.PostpaidEntry) ([]*trackingdomain.ConsumptionTracking, error) {
	if len(entries) == 0 {
		return nil, trackingdomain.ErrEmptyBatch
	}
	for _, entry := range entries {
		if err := validateEntry(entry.ContractNumber, entry.IndexValue); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	latest := map[string]*trackingdomain.PostpaidTrackingInfo{}
	trackings := make([]*trackingdomain.ConsumptionTracking, 0, len(entries))

	for _, entry := range entries {
		contract := strings.TrimSpace(entry.ContractNumber)
		prior, err := s.priorPostpaid(ctx, latest, contract)
		if err != nil {
			return nil, err
		}

		info := &trackingdomain.PostpaidTrackingInfo{
			ContractNumber:         contract,
			CustomerNumber:         strings.TrimSpace(entry.CustomerNumber),
			IndexValue:             entry.IndexValue,
			IndexDate:              entry.IndexDate,
			LastIndexValue:         decimal.Zero,
			TotalPowerConsumed:     entry.IndexValue,
			TotalAccumulatedPeriod: entry.IndexValue,
			NextTrackingDate:       nextTrackingDate(entry.IndexDate),
		}
		if prior != nil {
			info.LastIndexValue = prior.IndexValue
			info.LastIndexDate = prior.IndexDate
			info.TotalPowerConsumed = prior.TotalPowerConsumed.Add(entry.IndexValue)
		}
		latest[contract] = info

		trackings = append(trackings, s.newTracking(trackingdomain.TrackingTypePostpaid, false, info, now))
	}

	if err := s.persist(ctx, trackingdomain.TrackingTypePostpaid, trackings); err != nil {
		return nil, err
	}
	return trackings, nil
}

func (s *Service) RecordPrepaid(ctx context.Context, entries []trackingdomain.PrepaidEntry) ([]*trackingdomain.ConsumptionTracking, error) {
	if len(entries) == 0 {
		return nil, trackingdomain.ErrEmptyBatch
	}
	for _, entry := range entries {
		if err := validateEntry(entry.ContractNumber, entry.PowerRecharged); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	latest := map[string]*trackingdomain.PrepaidTrackingInfo{}
	trackings := make([]*trackingdomain.ConsumptionTracking, 0, len(entries))

	for _, entry := range entries {
		contract := strings.TrimSpace(entry.ContractNumber)
		prior, err := s.priorPrepaid(ctx, latest, contract)
		if err != nil {
			return nil, err
		}

		info := &trackingdomain.PrepaidTrackingInfo{
			ContractNumber:      contract,
			CustomerNumber:      strings.TrimSpace(entry.CustomerNumber),
			PowerRecharged:      entry.PowerRecharged,
			PowerRechargedDate:  entry.PowerRechargedDate,
			LastPowerRecharged:  decimal.Zero,
			TotalPowerRecharged: entry.PowerRecharged,
		}
		if prior != nil {
			info.LastPowerRecharged = prior.PowerRecharged
			info.LastPowerRechargedDate = prior.PowerRechargedDate
			info.TotalPowerRecharged = prior.TotalPowerRecharged.Add(entry.PowerRecharged)
		}
		latest[contract] = info

		trackings = append(trackings, s.newTracking(trackingdomain.TrackingTypePrepaid, true, info, now))
	}

	if err := s.persist(ctx, trackingdomain.TrackingTypePrepaid, trackings); err != nil {
		return nil, err
	}
	return trackings, nil
}

func (s *Service) GetByNumber(ctx context.Context, trackingType trackingdomain.TrackingType, number string) (*trackingdomain.ConsumptionTracking, error) {
	if !trackingType.Valid() {
		return nil, trackingdomain.ErrInvalidType
	}
	tracking, err := s.repo.FindByNumber(ctx, trackingType, number)
	if err != nil {
		return nil, err
	}
	if tracking == nil {
		return nil, trackingdomain.ErrNotFound
	}
	return tracking, nil
}

func (s *Service) ListByContract(ctx context.Context, trackingType trackingdomain.TrackingType, contract string, offset, limit int) ([]*trackingdomain.ConsumptionTracking, error) {
	if !trackingType.Valid() {
		return nil, trackingdomain.ErrInvalidType
	}
	return s.repo.ListByContract(ctx, trackingType, contract, offset, limit)
}

func (s *Service) GetLastByContract(ctx context.Context, trackingType trackingdomain.TrackingType, contract string) (*trackingdomain.ConsumptionTracking, error) {
	if !trackingType.Valid() {
		return nil, trackingdomain.ErrInvalidType
	}
	return s.repo.FindLastByContract(ctx, trackingType, contract)
}

func (s *Service) GetUninvoicedByNumber(ctx context.Context, trackingType trackingdomain.TrackingType, number string) (*trackingdomain.ConsumptionTracking, error) {
	return s.repo.FindByNumberAndInvoiced(ctx, trackingType, number, false)
}

func (s *Service) GetInvoicedByNumber(ctx context.Context, trackingType trackingdomain.TrackingType, number string) (*trackingdomain.ConsumptionTracking, error) {
	return s.repo.FindByNumberAndInvoiced(ctx, trackingType, number, true)
}

func (s *Service) ListUninvoiced(ctx context.Context, trackingType trackingdomain.TrackingType, offset, limit int) ([]*trackingdomain.ConsumptionTracking, error) {
	return s.repo.ListUninvoiced(ctx, trackingType, offset, limit)
}

func (s *Service) MarkInvoiced(ctx context.Context, trackings []*trackingdomain.ConsumptionTracking) error {
	now := s.clock.Now()
	for _, tracking := range trackings {
		tracking.IsInvoiced = true
		tracking.UpdatedAt = now
	}
	if err := s.repo.BatchUpdate(ctx, trackings); err != nil {
		return fmt.Errorf("mark trackings invoiced: %w", err)
	}
	return nil
}

func (s *Service) Deactivate(ctx context.Context, trackingType trackingdomain.TrackingType, number string) error {
	tracking, err := s.GetByNumber(ctx, trackingType, number)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	tracking.IsActivated = false
	tracking.UpdatedAt = now
	tracking.DeletedAt = &now
	if err := s.repo.Update(ctx, tracking); err != nil {
		return err
	}

	s.log.Info("tracking deactivated",
		zap.String("tracking_type", string(trackingType)),
		zap.String("tracking_number", number),
	)
	return nil
}

// priorPostpaid prefers an earlier entry of the same batch over storage so
// that several readings for one contract chain off each other.
func (s *Service) priorPostpaid(ctx context.Context, batch map[string]*trackingdomain.PostpaidTrackingInfo, contract string) (*trackingdomain.PostpaidTrackingInfo, error) {
	if info, ok := batch[contract]; ok {
		return info, nil
	}
	last, err := s.repo.FindLastByContract(ctx, trackingdomain.TrackingTypePostpaid, contract)
	if err != nil || last == nil {
		return nil, err
	}
	info, ok := last.Postpaid()
	if !ok {
		return nil, fmt.Errorf("tracking %s: expected postpaid infos", last.TrackingNumber)
	}
	return info, nil
}

func (s *Service) priorPrepaid(ctx context.Context, batch map[string]*trackingdomain.PrepaidTrackingInfo, contract string) (*trackingdomain.PrepaidTrackingInfo, error) {
	if info, ok := batch[contract]; ok {
		return info, nil
	}
	last, err := s.repo.FindLastByContract(ctx, trackingdomain.TrackingTypePrepaid, contract)
	if err != nil || last == nil {
		return nil, err
	}
	info, ok := last.Prepaid()
	if !ok {
		return nil, fmt.Errorf("tracking %s: expected prepaid infos", last.TrackingNumber)
	}
	return info, nil
}

func (s *Service) newTracking(trackingType trackingdomain.TrackingType, invoiced bool, info trackingdomain.TrackingInfo, now time.Time) *trackingdomain.ConsumptionTracking {
	return &trackingdomain.ConsumptionTracking{
		ID:             s.genID.Generate(),
		TrackingNumber: uuid.NewString(),
		TrackingType:   trackingType,
		ContractNumber: info.Contract(),
		IsInvoiced:     invoiced,
		Info:           info,
		IsActivated:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *Service) persist(ctx context.Context, trackingType trackingdomain.TrackingType, trackings []*trackingdomain.ConsumptionTracking) error {
	if err := s.repo.BatchInsert(ctx, trackings); err != nil {
		return fmt.Errorf("insert %s trackings: %w", trackingType, err)
	}
	s.metrics.RecordTrackingsCreated(string(trackingType), len(trackings))
	s.log.Debug("trackings recorded",
		zap.String("tracking_type", string(trackingType)),
		zap.Int("count", len(trackings)),
	)
	return nil
}

func validateEntry(contract string, value decimal.Decimal) error {
	if strings.TrimSpace(contract) == "" {
		return trackingdomain.ErrInvalidContract
	}
	if value.IsNegative() {
		return trackingdomain.ErrInvalidValue
	}
	return nil
}

// nextTrackingDate schedules the following reading one month after a
// well-formed reading date.
func nextTrackingDate(indexDate string) string {
	parsed, err := time.Parse(readingDateLayout, strings.TrimSpace(indexDate))
	if err != nil {
		return ""
	}
	return parsed.AddDate(0, 1, 0).Format(readingDateLayout)
}
