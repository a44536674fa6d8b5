package ui

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinsight/adapters/render"
	"clinsight/domain/core"
	"clinsight/internal/privacy"
	"clinsight/ports"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// Console is the read-only staff view: recent reports, the privacy budget
// dashboard, and rendered report pages. All writes go through the JSON API.
type Console struct {
	router    *gin.Engine
	reports   ports.ReportRepository
	engine    *privacy.Engine
	renderer  *render.MarkdownRenderer
	templates *template.Template
	logger    *zap.Logger
}

// NewConsole builds the console around the shared engine and repository
func NewConsole(reports ports.ReportRepository, engine *privacy.Engine, ginMode string, logger *zap.Logger) (*Console, error) {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	funcMap := template.FuncMap{
		"pct":   func(v float64) string { return fmt.Sprintf("%.0f%%", v) },
		"score": func(v float64) string { return fmt.Sprintf("%.2f", v) },
		"day":   func(ts core.Timestamp) string { return ts.Time().Format("2006-01-02") },
		"stamp": func(ts core.Timestamp) string { return ts.Time().Format("2006-01-02 15:04") },
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse console templates: %w", err)
	}

	s := &Console{
		router:    gin.Default(),
		reports:   reports,
		engine:    engine,
		renderer:  render.NewMarkdownRenderer(),
		templates: templates,
		logger:    logger,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Console) setupRoutes() {
	s.router.GET("/", s.handleDashboard)
	s.router.GET("/reports/:id", s.handleReportView)
	s.router.GET("/console/budget.json", s.handleBudgetJSON)
}

func (s *Console) handleDashboard(c *gin.Context) {
	status := s.engine.BudgetStatus()

	summaries, err := s.reports.List(c.Request.Context(), 50, 0)
	if err != nil {
		s.logger.Error("console failed to list reports", zap.Error(err))
		c.String(http.StatusInternalServerError, "failed to load reports")
		return
	}

	s.renderTemplate(c, "index.html", gin.H{
		"Budget":  status,
		"Reports": summaries,
	})
}

func (s *Console) handleReportView(c *gin.Context) {
	rep, err := s.reports.GetByID(c.Request.Context(), core.ReportID(c.Param("id")))
	if err != nil {
		if core.IsNotFoundError(err) {
			c.String(http.StatusNotFound, "report not found")
			return
		}
		s.logger.Error("console failed to load report", zap.Error(err))
		c.String(http.StatusInternalServerError, "failed to load report")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", s.renderer.RenderHTML(rep))
}

func (s *Console) handleBudgetJSON(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.BudgetStatus())
}

func (s *Console) renderTemplate(c *gin.Context, templateName string, data interface{}) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(c.Writer, templateName, data); err != nil {
		s.logger.Error("console template error",
			zap.String("template", templateName), zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

// Start blocks serving the console on the given port
func (s *Console) Start(port string) error {
	addr := ":" + port
	s.logger.Info("starting console", zap.String("addr", addr))
	return s.router.Run(addr)
}
