package domain

import (
	"strconv"
	"time"
)

// Metadata keys the service layer uses to pass caller details through a
// PaymentRequest.
const (
	MetaSessionID = "session_id"
	MetaClientIP  = "client_ip"
	MetaDeviceID  = "device_id"
	MetaLatitude  = "geo_lat"
	MetaLongitude = "geo_lon"
)

type GeoPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// TransactionContext carries the caller signals the fraud detector needs.
type TransactionContext struct {
	AccountID         string
	UserID            string
	SessionID         string
	ClientIP          string
	DeviceFingerprint string
	Location          *GeoPoint
	EvaluatedAt       time.Time
}

func NewTransactionContext(req *PaymentRequest, now time.Time) TransactionContext {
	tc := TransactionContext{
		AccountID:         req.SourceAccount,
		UserID:            req.UserID,
		SessionID:         req.Metadata[MetaSessionID],
		ClientIP:          req.Metadata[MetaClientIP],
		DeviceFingerprint: req.Metadata[MetaDeviceID],
		EvaluatedAt:       now,
	}

	lat, latErr := strconv.ParseFloat(req.Metadata[MetaLatitude], 64)
	lon, lonErr := strconv.ParseFloat(req.Metadata[MetaLongitude], 64)
	if latErr == nil && lonErr == nil && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 {
		tc.Location = &GeoPoint{Latitude: lat, Longitude: lon}
	}
	return tc
}
