package cycletime

import (
	"github.com/example/bark/internal/core/phase"
)

// Metric is a named phase-to-phase pair shown on the dashboard.
type Metric struct {
	Name  string
	Label string
	From  phase.Phase
	To    phase.Phase
}

var standardMetrics = []Metric{
	{"loa_efficiency", "LOA Efficiency", phase.ApprovalLOAProcessing, phase.ApprovalLOAApproved},
	{"logistics_flow", "Logistics Flow", phase.PartsOrdered, phase.PartsArrived},
	{"parts_to_repair", "Parts to Repair", phase.PartsArrived, phase.RepairOngoingRepair},
	{"production_speed", "Production Speed", phase.RepairOngoingRepair, phase.RepairInspectionTesting},
	{"billing_velocity", "Billing Velocity", phase.BillingPending, phase.BillingPaid},
}

// StandardMetrics returns the dashboard pairs in display order.
func StandardMetrics() []Metric {
	out := make([]Metric, len(standardMetrics))
	copy(out, standardMetrics)
	return out
}

// LookupMetric finds a standard metric by name.
func LookupMetric(name string) (Metric, bool) {
	for _, m := range standardMetrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// Table is a named grouped average.
type Table struct {
	Name   string
	Title  string
	Metric string
	Group  GroupKey
}

var standardTables = []Table{
	{"loa_by_insurer", "LOA Processing by Insurer", "loa_efficiency", GroupInsurer},
	{"payment_by_insurer", "Payment Collection by Insurer", "billing_velocity", GroupInsurer},
	{"repair_by_price_range", "Repair Time by Price Range", "production_speed", GroupPriceRange},
	{"repair_by_model", "Repair Time by Vehicle Model", "production_speed", GroupModel},
	{"repair_by_model_price", "Repair Time by Model and Price", "production_speed", GroupModelPrice},
}

// StandardTables returns the grouped tables in display order.
func StandardTables() []Table {
	out := make([]Table, len(standardTables))
	copy(out, standardTables)
	return out
}

// LookupTable finds a standard table by name.
func LookupTable(name string) (Table, bool) {
	for _, t := range standardTables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
