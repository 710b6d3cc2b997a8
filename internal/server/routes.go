package server

import "github.com/gin-gonic/gin"

// Routes registers the dashboard API on the router.
func (s *Server) Routes(r *gin.Engine) {
	r.Use(RequestID())
	r.GET("/healthz", s.Healthz)

	api := r.Group("/api")
	api.Use(RequireOwner())
	{
		api.POST("/invoices/process", s.ProcessBatch)
		api.POST("/invoices/process-single", s.ProcessSingle)
		api.GET("/invoices", s.ListInvoices)
		api.DELETE("/invoices/:id", s.DeleteInvoice)
	}
}
