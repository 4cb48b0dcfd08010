package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
)

type postpaidTrackingRequest struct {
	ContractNumber string          `json:"contract_number" binding:"required"`
	CustomerNumber string          `json:"customer_number"`
	IndexValue     decimal.Decimal `json:"index_value" binding:"decimalgte0"`
	IndexDate      string          `json:"index_date" binding:"required,dateonly"`
}

type prepaidTrackingRequest struct {
	ContractNumber     string          `json:"contract_number" binding:"required"`
	CustomerNumber     string          `json:"customer_number"`
	PowerRecharged     decimal.Decimal `json:"power_recharged" binding:"decimalgte0"`
	PowerRechargedDate string          `json:"power_recharged_date" binding:"required,dateonly"`
}

func (s *Server) CreatePostpaidTrackings(c *gin.Context) {
	var req []postpaidTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	entries := make([]trackingdomain.PostpaidEntry, 0, len(req))
	for _, r := range req {
		entries = append(entries, trackingdomain.PostpaidEntry{
			ContractNumber: strings.TrimSpace(r.ContractNumber),
			CustomerNumber: strings.TrimSpace(r.CustomerNumber),
			IndexValue:     r.IndexValue,
			IndexDate:      r.IndexDate,
		})
	}

	created, err := s.trackingSvc.CreatePostpaidBatch(c.Request.Context(), entries)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

// CreatePrepaidTrackings records recharges and issues their invoices.
func (s *Server) CreatePrepaidTrackings(c *gin.Context) {
	var req []prepaidTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	entries := make([]trackingdomain.PrepaidEntry, 0, len(req))
	for _, r := range req {
		entries = append(entries, trackingdomain.PrepaidEntry{
			ContractNumber:     strings.TrimSpace(r.ContractNumber),
			CustomerNumber:     strings.TrimSpace(r.CustomerNumber),
			PowerRecharged:     r.PowerRecharged,
			PowerRechargedDate: r.PowerRechargedDate,
		})
	}

	created, err := s.rechargeSvc.Record(c.Request.Context(), entries)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) GetTracking(trackingType trackingdomain.TrackingType) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := s.trackingSvc.GetByNumber(c.Request.Context(), trackingType, strings.TrimSpace(c.Param("number")))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func (s *Server) ListTrackingsByContract(trackingType trackingdomain.TrackingType) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, limit, err := pagination(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		items, err := s.trackingSvc.ListByContract(c.Request.Context(), trackingType, strings.TrimSpace(c.Param("contract")), offset, limit)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

func (s *Server) GetLastTrackingByContract(trackingType trackingdomain.TrackingType) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := s.trackingSvc.GetLastByContract(c.Request.Context(), trackingType, strings.TrimSpace(c.Param("contract")))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if item == nil {
			AbortWithError(c, trackingdomain.ErrNotFound)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func (s *Server) DeleteTracking(trackingType trackingdomain.TrackingType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.trackingSvc.Deactivate(c.Request.Context(), trackingType, strings.TrimSpace(c.Param("number"))); err != nil {
			AbortWithError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
