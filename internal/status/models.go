package status

import (
	"time"

	"github.com/patricklo/ipo-allocation-api/internal/types"
	"gorm.io/gorm"
)

// StatusAudit is one row per status transition. Append-only, never mutated.
type StatusAudit struct {
	gorm.Model    `json:"-"`
	ClientOrderID string               `gorm:"index" json:"client_order_id"`
	FromStatus    types.OrderStatus    `json:"from_status"`
	FromSubStatus types.OrderSubStatus `json:"from_sub_status"`
	ToStatus      types.OrderStatus    `json:"to_status"`
	ToSubStatus   types.OrderSubStatus `json:"to_sub_status"`
	ChangedBy     string               `json:"changed_by"`
	ChangedAt     time.Time            `json:"changed_at"`
	Note          string               `json:"note"`
}
