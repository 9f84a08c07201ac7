// Package phase is the static catalog of repair-job workflow phases.
// The catalog is pure data: it names phases, groups them into categories and
// fixes a stable display order. It does not decide which transitions are legal.
package phase

import "strings"

// Phase identifies a stage in a job's workflow.
type Phase string

// Category groups related phases. Phase names are prefixed by their category.
type Category string

const (
	CategoryApproval  Category = "APPROVAL"
	CategoryParts     Category = "PARTS"
	CategoryRepair    Category = "REPAIR"
	CategoryPickup    Category = "PICKUP"
	CategoryBilling   Category = "BILLING"
	CategoryDismantle Category = "DISMANTLE"
	CategoryCancelled Category = "CANCELLED"
)

const (
	ApprovalEstimateDone     Phase = "APPROVAL_ESTIMATE_DONE"
	ApprovalLOAProcessing    Phase = "APPROVAL_LOA_PROCESSING"
	ApprovalLOARevising      Phase = "APPROVAL_LOA_REVISING"
	ApprovalLOARejected      Phase = "APPROVAL_LOA_REJECTED"
	ApprovalLOAApproved      Phase = "APPROVAL_LOA_APPROVED"
	ApprovalAwaitingCustomer Phase = "APPROVAL_AWAITING_CUSTOMER"
	PartsAvailable           Phase = "PARTS_AVAILABLE"
	PartsOrdered             Phase = "PARTS_ORDERED"
	PartsPartialReceived     Phase = "PARTS_PARTIAL_RECEIVED"
	PartsArrived             Phase = "PARTS_ARRIVED"
	RepairWaitingScheduling  Phase = "REPAIR_WAITING_SCHEDULING"
	RepairWaitingParts       Phase = "REPAIR_WAITING_PARTS"
	RepairOngoingRepair      Phase = "REPAIR_ONGOING_REPAIR"
	RepairOngoingBodyWork    Phase = "REPAIR_ONGOING_BODY_WORK"
	RepairOngoingBodyPaint   Phase = "REPAIR_ONGOING_BODY_PAINT"
	RepairWaitingDropoff     Phase = "REPAIR_WAITING_DROPOFF"
	RepairInspectionTesting  Phase = "REPAIR_INSPECTION_TESTING"
	PickupReady              Phase = "PICKUP_READY"
	PickupContacted          Phase = "PICKUP_CONTACTED"
	PickupReleased           Phase = "PICKUP_RELEASED"
	BillingPending           Phase = "BILLING_PENDING"
	BillingPaid              Phase = "BILLING_PAID"
	BillingReleased          Phase = "BILLING_RELEASED"
	DismantleForDismantle    Phase = "DISMANTLE_FOR_DISMANTLE"
	Cancelled                Phase = "CANCELLED"
)

// Default is the phase a job starts in when the caller does not pick one.
const Default = ApprovalEstimateDone

// Entry describes one catalog phase.
type Entry struct {
	Phase    Phase
	Category Category
	Label    string
}

var categories = []Category{
	CategoryApproval,
	CategoryParts,
	CategoryRepair,
	CategoryPickup,
	CategoryBilling,
	CategoryDismantle,
	CategoryCancelled,
}

var categoryLabels = map[Category]string{
	CategoryApproval:  "LOA & Insurance",
	CategoryParts:     "Parts Procurement",
	CategoryRepair:    "Repair Shop Stage",
	CategoryPickup:    "Releasing Stage",
	CategoryBilling:   "Insurance Claims",
	CategoryDismantle: "Total Wreck",
	CategoryCancelled: "Cancelled",
}

var entries = []Entry{
	{ApprovalEstimateDone, CategoryApproval, "Approval - Estimate Done"},
	{ApprovalLOAProcessing, CategoryApproval, "Approval - LOA Processing"},
	{ApprovalLOARevising, CategoryApproval, "Approval - LOA Revising"},
	{ApprovalLOARejected, CategoryApproval, "Approval - LOA Rejected"},
	{ApprovalLOAApproved, CategoryApproval, "Approval - LOA Approved"},
	{ApprovalAwaitingCustomer, CategoryApproval, "Approval - Awaiting Customer Confirmation"},
	{PartsAvailable, CategoryParts, "Parts - Available"},
	{PartsOrdered, CategoryParts, "Parts - Ordered"},
	{PartsPartialReceived, CategoryParts, "Parts - Partial Received"},
	{PartsArrived, CategoryParts, "Parts - Arrived"},
	{RepairWaitingScheduling, CategoryRepair, "Repair - Waiting for Scheduling"},
	{RepairWaitingParts, CategoryRepair, "Repair - Waiting for Parts"},
	{RepairOngoingRepair, CategoryRepair, "Repair - Ongoing Repair"},
	{RepairOngoingBodyWork, CategoryRepair, "Repair - Ongoing Body Work"},
	{RepairOngoingBodyPaint, CategoryRepair, "Repair - Ongoing Body Paint"},
	{RepairWaitingDropoff, CategoryRepair, "Repair - Waiting for Drop-off"},
	{RepairInspectionTesting, CategoryRepair, "Repair - Inspection/Testing"},
	{PickupReady, CategoryPickup, "Pickup - Ready"},
	{PickupContacted, CategoryPickup, "Pickup - Contacted"},
	{PickupReleased, CategoryPickup, "Pickup - Released"},
	{BillingPending, CategoryBilling, "Billing - Pending"},
	{BillingPaid, CategoryBilling, "Billing - Paid"},
	{BillingReleased, CategoryBilling, "Billing - Released"},
	{DismantleForDismantle, CategoryDismantle, "Dismantle - For Dismantle"},
	{Cancelled, CategoryCancelled, "Cancelled"},
}

var byPhase = func() map[Phase]Entry {
	m := make(map[Phase]Entry, len(entries))
	for _, e := range entries {
		m[e.Phase] = e
	}
	return m
}()

// All returns every catalog entry in display order.
func All() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Categories returns the categories in their stable order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Lookup returns the catalog entry for p.
func Lookup(p Phase) (Entry, bool) {
	e, ok := byPhase[p]
	return e, ok
}

// IsValid reports whether p exists in the catalog.
func IsValid(p Phase) bool {
	_, ok := byPhase[p]
	return ok
}

// Parse converts a raw string into a catalog phase.
func Parse(s string) (Phase, bool) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	return p, IsValid(p)
}

// CategoryOf returns the category p belongs to.
func CategoryOf(p Phase) (Category, bool) {
	e, ok := byPhase[p]
	return e.Category, ok
}

// Label returns the display label of p, or the raw value for unknown phases.
func Label(p Phase) string {
	if e, ok := byPhase[p]; ok {
		return e.Label
	}
	return string(p)
}

// Label returns the display label of c.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// InCategory returns the phases of c in display order.
func InCategory(c Category) []Phase {
	var out []Phase
	for _, e := range entries {
		if e.Category == c {
			out = append(out, e.Phase)
		}
	}
	return out
}

// IsCategory reports whether s names a catalog category.
func IsCategory(s string) bool {
	for _, c := range categories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// Index returns the display position of p, or -1.
func Index(p Phase) int {
	for i, e := range entries {
		if e.Phase == p {
			return i
		}
	}
	return -1
}

var released = []Phase{PickupReleased, BillingReleased}

// Released returns the phases that hand the vehicle back to the customer.
func Released() []Phase {
	out := make([]Phase, len(released))
	copy(out, released)
	return out
}

// IsClosed reports whether a job in p no longer occupies the shop:
// the vehicle was released, written off or the job was cancelled.
func IsClosed(p Phase) bool {
	switch p {
	case PickupReleased, BillingReleased, DismantleForDismantle, Cancelled:
		return true
	}
	return false
}
