package inventory

import (
	"strings"
	"time"

	"github.com/medstock-labs/medstock/internal/errors"
)

// Supplier is a medicine vendor. Suppliers are keyed by name and created
// implicitly during imports when an unseen supplier name appears.
type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks that the supplier is well formed.
func (s *Supplier) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.NewInvalidRecord("supplier.name", "cannot be empty")
	}
	return nil
}
