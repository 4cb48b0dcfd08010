package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
)

func bindTrackingNumbers(c *gin.Context) ([]string, error) {
	var numbers []string
	if err := c.ShouldBindJSON(&numbers); err != nil {
		return nil, invalidRequestError()
	}

	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, newValidationError("tracking_numbers", "required", "at least one tracking number is required")
	}
	return out, nil
}

func (s *Server) CreatePostpaidInvoices(c *gin.Context) {
	numbers, err := bindTrackingNumbers(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	created, err := s.invoiceSvc.CreatePostpaidBatch(c.Request.Context(), numbers)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) CreatePrepaidInvoices(c *gin.Context) {
	numbers, err := bindTrackingNumbers(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	created, err := s.invoiceSvc.CreatePrepaidBatch(c.Request.Context(), numbers)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) AdvanceDunning(c *gin.Context) {
	item, err := s.dunningSvc.Advance(c.Request.Context(), strings.TrimSpace(c.Param("number")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) GetInvoice(invoiceType invoicedomain.InvoiceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := s.invoiceSvc.GetByNumber(c.Request.Context(), invoiceType, strings.TrimSpace(c.Param("number")))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func (s *Server) GetInvoicePDF(invoiceType invoicedomain.InvoiceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := s.invoiceSvc.GetByNumber(c.Request.Context(), invoiceType, strings.TrimSpace(c.Param("number")))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		doc, err := s.renderer.PDF(item)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", "invoice-"+item.InvoiceNumber+".pdf"))
		c.Data(http.StatusOK, "application/pdf", doc)
	}
}

func (s *Server) ListInvoicesByContract(invoiceType invoicedomain.InvoiceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, limit, err := pagination(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		items, err := s.invoiceSvc.ListByContract(c.Request.Context(), invoiceType, strings.TrimSpace(c.Param("contract")), offset, limit)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

func (s *Server) GetLastInvoiceByContract(invoiceType invoicedomain.InvoiceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := s.invoiceSvc.GetLastByContract(c.Request.Context(), invoiceType, strings.TrimSpace(c.Param("contract")))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if item == nil {
			AbortWithError(c, invoicedomain.ErrNotFound)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func (s *Server) DeleteInvoice(invoiceType invoicedomain.InvoiceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.invoiceSvc.Deactivate(c.Request.Context(), invoiceType, strings.TrimSpace(c.Param("number"))); err != nil {
			AbortWithError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
