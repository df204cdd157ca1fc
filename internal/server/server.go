package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/TobiSchelling/kpub/internal/database"
	"github.com/TobiSchelling/kpub/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// FirstYear is the first year of the annual counts.
const FirstYear = 2009

// maxYearSpan bounds /api/counts requests.
const maxYearSpan = 200

// Server is the read-only HTTP browser for the publication database.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":     renderMarkdown,
		"formatMonth":  database.FormatMonthDisplay,
		"missionTitle": report.MissionTitle,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base with its own "title" and "content".
	pageNames := []string{"index.html", "publications.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/publications", s.handlePublications)
	s.mux.HandleFunc("/api/metrics", s.handleMetrics)
	s.mux.HandleFunc("/api/counts", s.handleCounts)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	metrics, err := s.db.GetMetrics(0)
	if err != nil {
		serverError(w, err)
		return
	}
	cited, err := s.db.GetMostCited(database.Filter{}, report.MostCitedCount)
	if err != nil {
		serverError(w, err)
		return
	}
	authors, err := s.db.GetMostActiveFirstAuthors(report.MinFirstAuthorPapers)
	if err != nil {
		serverError(w, err)
		return
	}
	overview, err := report.Overview(report.OverviewData{
		Metrics:                metrics,
		MostCited:              cited,
		MostActiveFirstAuthors: authors,
		Now:                    time.Now(),
	})
	if err != nil {
		serverError(w, err)
		return
	}

	counts, err := s.db.GetAnnualPublicationCount(FirstYear, database.CurrentYear())
	if err != nil {
		serverError(w, err)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		serverError(w, err)
		return
	}
	lastRun, err := s.db.GetLastUpdateRun()
	if err != nil {
		log.Printf("Warning: could not load last update run: %v", err)
	}

	type yearCount struct {
		Year, Kepler, K2, Both int
	}
	var years []yearCount
	for y := database.CurrentYear(); y >= FirstYear; y-- {
		years = append(years, yearCount{
			Year:   y,
			Kepler: counts[string(database.MissionKepler)][y],
			K2:     counts[string(database.MissionK2)][y],
			Both:   counts[database.Both][y],
		})
	}

	s.render(w, "index.html", map[string]any{
		"Overview": overview,
		"Years":    years,
		"Stats":    stats,
		"LastRun":  lastRun,
	})
}

func (s *Server) handlePublications(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	byMonth := r.URL.Query().Get("group") == "month"

	rows, err := s.db.Query(f)
	if err != nil {
		serverError(w, err)
		return
	}

	title := "Kepler/K2 publications"
	if f.Mission != "" {
		title = report.MissionTitle(f.Mission) + " publications"
	}
	if f.Science != "" {
		title += " (" + string(f.Science) + ")"
	}
	if f.Year != 0 {
		title += fmt.Sprintf(" in %d", f.Year)
	}

	s.render(w, "publications.html", map[string]any{
		"Title":   title,
		"Total":   len(rows),
		"Groups":  report.GroupRows(rows, byMonth),
		"Filter":  f,
		"ByMonth": byMonth,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = y
	}

	metrics, err := s.db.GetMetrics(year)
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, metrics)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := FirstYear, database.CurrentYear()
	var err error
	if v := q.Get("from"); v != "" {
		if from, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid from year", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid to year", http.StatusBadRequest)
			return
		}
	}
	if from > to || to-from > maxYearSpan {
		http.Error(w, "invalid year range", http.StatusBadRequest)
		return
	}

	var counts database.AnnualCounts
	if q.Get("cumulative") == "1" {
		counts, err = s.db.GetAnnualPublicationCountCumulative(from, to)
	} else {
		counts, err = s.db.GetAnnualPublicationCount(from, to)
	}
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, counts)
}

func parseFilter(r *http.Request) (database.Filter, error) {
	q := r.URL.Query()
	var f database.Filter
	if v := q.Get("mission"); v != "" {
		m, err := database.ParseMission(v)
		if err != nil {
			return f, err
		}
		f.Mission = m
	}
	if v := q.Get("science"); v != "" {
		sc, err := database.ParseScience(v)
		if err != nil {
			return f, err
		}
		f.Science = sc
	}
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid year %q", v)
		}
		f.Year = y
	}
	return f, nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func serverError(w http.ResponseWriter, err error) {
	log.Printf("Error handling request: %v", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func renderMarkdown(text string) template.HTML {
	out, err := report.RenderMarkdown(text)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return out
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
