package dashboard

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/opensass/eldflow/internal/dashboard/api"
	"github.com/opensass/eldflow/internal/eld"
	"github.com/opensass/eldflow/internal/storage"
)

var templateFuncs = template.FuncMap{
	"hours": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"miles": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f mi", *v)
	},
	"duration": func(minutes *int64) string {
		if minutes == nil {
			return "n/a"
		}
		return (time.Duration(*minutes) * time.Minute).String()
	},
}

type pageData struct {
	Title        string
	PageID       string
	Driver       *storage.Driver
	Trip         *storage.Trip
	Trips        []storage.Trip
	Statuses     []eld.DutyStatus
	Billable     []eld.DutyStatus
	TripStatuses []storage.TripStatus
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		s.logger.Error().Err(err).Str("page", data.PageID).Msg("Failed to render template")
	}
}

func (s *Server) currentDriver(r *http.Request) (*storage.Driver, error) {
	id, ok := api.IdentityFromContext(r.Context())
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.auth.Driver(r.Context(), id.DriverID)
}

// pageTrip loads a trip of the current driver for a page.
func (s *Server) pageTrip(w http.ResponseWriter, r *http.Request) (*storage.Driver, *storage.Trip, bool) {
	driver, err := s.currentDriver(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil, nil, false
	}

	trip, err := s.store.Trips().Get(r.Context(), mux.Vars(r)["id"])
	if err != nil || trip.DriverID != driver.ID {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().Err(err).Msg("Failed to load trip")
		}
		s.render(w, http.StatusNotFound, pageData{Title: "Not found", PageID: "notfound", Driver: driver})
		return nil, nil, false
	}
	return driver, trip, true
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageData{Title: "ELDFlow", PageID: "home"})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageData{Title: "Login", PageID: "login"})
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageData{Title: "Sign up", PageID: "signup"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	s.render(w, http.StatusNotFound, pageData{Title: "Not found", PageID: "notfound"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	driver, err := s.currentDriver(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	trips, err := s.store.Trips().ListByDriver(r.Context(), driver.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list trips")
	}

	s.render(w, http.StatusOK, pageData{
		Title:  "Trips",
		PageID: "dashboard",
		Driver: driver,
		Trips:  trips,
	})
}

func (s *Server) handleTripPage(w http.ResponseWriter, r *http.Request) {
	driver, trip, ok := s.pageTrip(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, pageData{
		Title:    trip.CurrentLocation,
		PageID:   "trip",
		Driver:   driver,
		Trip:     trip,
		Statuses: eld.AllStatuses,
		Billable: eld.BillableStatuses,
	})
}

func (s *Server) handleTripEditPage(w http.ResponseWriter, r *http.Request) {
	driver, trip, ok := s.pageTrip(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, pageData{
		Title:        "Edit trip",
		PageID:       "trip-edit",
		Driver:       driver,
		Trip:         trip,
		TripStatuses: []storage.TripStatus{storage.TripPending, storage.TripOngoing, storage.TripCompleted},
	})
}

func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	driver, err := s.currentDriver(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, pageData{Title: "Profile", PageID: "profile", Driver: driver})
}
