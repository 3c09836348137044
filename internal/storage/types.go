package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	TripPending   TripStatus = "pending"
	TripOngoing   TripStatus = "ongoing"
	TripCompleted TripStatus = "completed"
)

// UnmarshalJSON normalizes the status to lowercase.
func (s *TripStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := TripStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch normalized {
	case TripPending, TripOngoing, TripCompleted:
		*s = normalized
		return nil
	case "":
		*s = TripPending
		return nil
	default:
		return fmt.Errorf("invalid trip status: %s (must be pending, ongoing, or completed)", raw)
	}
}

// StopType is the purpose of a route stop.
type StopType string

const (
	StopRest       StopType = "Rest"
	StopFueling    StopType = "Fueling"
	StopInspection StopType = "Inspection"
)

// Valid reports whether t is a known stop type.
func (t StopType) Valid() bool {
	switch t {
	case StopRest, StopFueling, StopInspection:
		return true
	}
	return false
}

// Driver is a dashboard account.
type Driver struct {
	ID            string     `json:"id" bson:"_id"`
	Name          string     `json:"name" bson:"name"`
	Email         string     `json:"email" bson:"email"`
	PasswordHash  string     `json:"-" bson:"passwordHash"`
	Photo         string     `json:"photo" bson:"photo"`
	Role          string     `json:"role" bson:"role"`
	Verified      bool       `json:"verified" bson:"verified"`
	LicenseNumber string     `json:"licenseNumber,omitempty" bson:"licenseNumber,omitempty"`
	EldDeviceID   string     `json:"eldDeviceId,omitempty" bson:"eldDeviceId,omitempty"`
	LastLogin     *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Trip is a planned or running haul.
type Trip struct {
	ID                string     `json:"id" bson:"_id"`
	DriverID          string     `json:"driverId" bson:"driverId"`
	CurrentLocation   string     `json:"currentLocation" bson:"currentLocation"`
	Picture           string     `json:"picture" bson:"picture"`
	PickupLocation    string     `json:"pickupLocation" bson:"pickupLocation"`
	DropoffLocation   string     `json:"dropoffLocation" bson:"dropoffLocation"`
	CycleUsedHours    float64    `json:"cycleUsedHours" bson:"cycleUsedHours"`
	Status            TripStatus `json:"status" bson:"status"`
	DistanceMiles     *float64   `json:"distanceMiles,omitempty" bson:"distanceMiles,omitempty"`
	EstimatedDuration *int64     `json:"estimatedDuration,omitempty" bson:"estimatedDuration,omitempty"` // minutes
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// EldLog is one persisted duty-status segment with the aggregate snapshot
// taken when it was submitted.
type EldLog struct {
	ID                string    `json:"id" bson:"_id"`
	DriverID          string    `json:"driverId" bson:"driverId"`
	TripID            string    `json:"tripId" bson:"tripId"`
	StartHour         float64   `json:"startHour" bson:"startHour"`
	EndHour           float64   `json:"endHour" bson:"endHour"`
	Status            string    `json:"status" bson:"status"`
	Location          string    `json:"location" bson:"location"`
	Note              string    `json:"note" bson:"note"`
	OdometerReading   *float64  `json:"odometerReading,omitempty" bson:"odometerReading,omitempty"`
	OffDutyHours      float64   `json:"offDutyHours" bson:"offDutyHours"`
	SleeperBerthHours float64   `json:"sleeperBerthHours" bson:"sleeperBerthHours"`
	DrivingHours      float64   `json:"drivingHours" bson:"drivingHours"`
	OnDutyHours       float64   `json:"onDutyHours" bson:"onDutyHours"`
	CreatedAt         time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updatedAt"`
}

// FuelingStop records fuel taken on during a trip.
type FuelingStop struct {
	ID         string    `json:"id" bson:"_id"`
	TripID     string    `json:"tripId" bson:"tripId"`
	Location   string    `json:"location" bson:"location"`
	FuelAmount float64   `json:"fuelAmount" bson:"fuelAmount"` // gallons
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Waypoint is an intermediate point on a route.
type Waypoint struct {
	ID        string     `json:"id" bson:"_id"`
	Location  string     `json:"location" bson:"location"`
	ETA       *time.Time `json:"eta,omitempty" bson:"eta,omitempty"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Route is the planned path of a trip.
type Route struct {
	ID                   string     `json:"id" bson:"_id"`
	TripID               string     `json:"tripId" bson:"tripId"`
	StartLocation        string     `json:"startLocation" bson:"startLocation"`
	EndLocation          string     `json:"endLocation" bson:"endLocation"`
	Waypoints            []Waypoint `json:"waypoints" bson:"waypoints"`
	TotalDistanceMiles   float64    `json:"totalDistanceMiles" bson:"totalDistanceMiles"`
	EstimatedTimeMinutes int64      `json:"estimatedTimeMinutes" bson:"estimatedTimeMinutes"`
	CreatedAt            time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// RouteStop is a planned stop along a route.
type RouteStop struct {
	ID              string    `json:"id" bson:"_id"`
	RouteID         string    `json:"routeId" bson:"routeId"`
	Location        string    `json:"location" bson:"location"`
	StopType        StopType  `json:"stopType" bson:"stopType"`
	DurationMinutes int64     `json:"durationMinutes" bson:"durationMinutes"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DailyLog is the signed record of duty for one day of a trip.
type DailyLog struct {
	ID        string    `json:"id" bson:"_id"`
	DriverID  string    `json:"driverId" bson:"driverId"`
	TripID    string    `json:"tripId" bson:"tripId"`
	LogDate   time.Time `json:"logDate" bson:"logDate"`
	Signature string    `json:"signature,omitempty" bson:"signature,omitempty"` // base64
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// LogEntry is a status change recorded on a daily log.
type LogEntry struct {
	ID        string    `json:"id" bson:"_id"`
	LogID     string    `json:"logId" bson:"logId"`
	Time      time.Time `json:"time" bson:"time"`
	Status    string    `json:"status" bson:"status"`
	Location  string    `json:"location" bson:"location"`
	Remarks   string    `json:"remarks,omitempty" bson:"remarks,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Conversation is a chat thread about one trip.
type Conversation struct {
	ID        string    `json:"id" bson:"_id"`
	DriverID  string    `json:"driverId" bson:"user"`
	TripID    string    `json:"tripId" bson:"trip"`
	Title     string    `json:"title" bson:"title"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Message senders.
const (
	SenderDriver = "driver"
	SenderGemini = "gemini"
)

// Message is one chat message.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversationId" bson:"conversation"`
	Sender         string    `json:"sender" bson:"sender"`
	Content        string    `json:"content" bson:"content"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Session is an authenticated dashboard session.
type Session struct {
	ID           string    `json:"id" bson:"_id"`
	DriverID     string    `json:"driverId" bson:"driverId"`
	Email        string    `json:"email" bson:"email"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	LastActivity time.Time `json:"lastActivity" bson:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt" bson:"expiresAt"`
}

// IsExpired reports whether the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
