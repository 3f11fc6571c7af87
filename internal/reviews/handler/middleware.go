package handler

import (
	"context"
	"net/http"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/apperr"
	"servewell_backend/platform/httpkit"
	"servewell_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderCompanyToken carries the company's token on ingestion calls.
	HeaderCompanyToken = "X-Company-Token"
	contextCompanyKey  = "reviewsCompany"
)

// CompanyFinder resolves a company from the hash of its token.
type CompanyFinder interface {
	CompanyByTokenHash(ctx context.Context, hash string) (domain.Company, error)
}

// CompanyAuth validates the company token header and stores the company on
// the gin context for downstream handlers.
func CompanyAuth(companies CompanyFinder, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(HeaderCompanyToken)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "missing company token"})
			return
		}

		company, err := companies.CompanyByTokenHash(c.Request.Context(), httpkit.HashToken(token))
		if err != nil {
			if !apperr.Is(err, apperr.KindNotFound) {
				log.WithContext(c.Request.Context()).DatabaseError("resolve company token", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, httpkit.ErrorResponse{Error: "internal error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "invalid company token"})
			return
		}

		c.Set(contextCompanyKey, company)
		c.Next()
	}
}

func companyFrom(c *gin.Context) (domain.Company, bool) {
	v, ok := c.Get(contextCompanyKey)
	if !ok {
		return domain.Company{}, false
	}
	company, ok := v.(domain.Company)
	return company, ok
}
