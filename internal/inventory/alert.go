package inventory

import (
	"time"
)

// AlertType categorizes a stock alert.
type AlertType string

const (
	AlertLowStock   AlertType = "low_stock"
	AlertNearExpiry AlertType = "near_expiry"
	AlertExpired    AlertType = "expired"
)

// AllAlertTypes returns all valid alert types.
func AllAlertTypes() []AlertType {
	return []AlertType{AlertLowStock, AlertNearExpiry, AlertExpired}
}

// IsValid checks if the alert type is known.
func (t AlertType) IsValid() bool {
	for _, valid := range AllAlertTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// IsCritical reports whether alerts of this type warrant immediate
// notification. Near-expiry alerts give lead time; expired stock and empty
// shelves do not.
func (t AlertType) IsCritical() bool {
	return t == AlertExpired || t == AlertLowStock
}

// Display returns a human-readable label for the alert type.
func (t AlertType) Display() string {
	switch t {
	case AlertLowStock:
		return "Low Stock"
	case AlertNearExpiry:
		return "Near Expiry"
	case AlertExpired:
		return "Expired"
	default:
		return string(t)
	}
}

// Alert is a stock notification awaiting acknowledgement. At most one
// unacknowledged alert exists per (MedicineName, Type).
type Alert struct {
	ID             string    `json:"id"`
	MedicineName   string    `json:"medicine_name"`
	Type           AlertType `json:"type"`
	Message        string    `json:"message"`
	Acknowledged   bool      `json:"acknowledged"`
	AcknowledgedBy string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
