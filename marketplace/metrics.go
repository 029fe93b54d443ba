package marketplace

import (
	"github.com/warp/synth-engine/generic"
)

// courierCapacity is the monthly order count at which a courier counts as
// fully utilized.
const courierCapacity = 50

// Metrics summarize a finished LocalBites run. Amounts are cents.
type Metrics struct {
	GMV                 int64   `json:"gmv"`
	PlatformRevenue     int64   `json:"platform_revenue"`
	TakeRate            float64 `json:"take_rate"`
	AverageOrderValue   int64   `json:"average_order_value"`
	TotalOrders         int     `json:"total_orders"`
	FailedOrders        int     `json:"failed_orders"`
	PaymentFailureRate  float64 `json:"payment_failure_rate"`
	ActiveRestaurants   int     `json:"active_restaurants"`
	ActiveCouriers      int     `json:"active_couriers"`
	OrdersPerRestaurant float64 `json:"orders_per_restaurant"`
	OrdersPerCourier    float64 `json:"orders_per_courier"`
	CourierUtilization  float64 `json:"courier_utilization"`
	RestaurantPayouts   int64   `json:"restaurant_payouts"`
	CourierPayouts      int64   `json:"courier_payouts"`

	ExpenseAuthorizations int              `json:"expense_authorizations"`
	ExpenseSpend          map[string]int64 `json:"expense_spend"`
	GMVByCuisine          map[string]int64 `json:"gmv_by_cuisine"`
}

var _ generic.MetricsHook = (*Factory)(nil)

// Metrics implements generic.MetricsHook.
func (f *Factory) Metrics(ds *generic.Dataset) (any, error) {
	return ComputeMetrics(ds), nil
}

// ComputeMetrics derives Metrics from a dataset built by this vertical.
// Utilization is orders per active courier per month against a capacity of
// 50, capped at 1.
func ComputeMetrics(ds *generic.Dataset) Metrics {
	m := Metrics{
		ExpenseSpend: map[string]int64{},
		GMVByCuisine: map[string]int64{},
	}
	restaurants := map[string]bool{}
	couriers := map[string]bool{}
	payments := ds.Collection(generic.CollectionPayments)
	for _, p := range payments {
		if p.Status != StatusSucceeded {
			m.FailedOrders++
			continue
		}
		m.TotalOrders++
		m.GMV += p.Amount
		m.PlatformRevenue += p.FieldInt("application_fee_amount")
		m.GMVByCuisine[p.Category] += p.Amount
		restaurants[p.Ref("restaurant")] = true
		couriers[p.Ref("courier")] = true
	}
	for _, tr := range ds.Collection(generic.CollectionTransfers) {
		switch tr.Category {
		case "restaurant_payout":
			m.RestaurantPayouts += tr.Amount
		case "courier_payout":
			m.CourierPayouts += tr.Amount
		}
	}
	for _, a := range ds.Collection(CollectionAuthorizations) {
		m.ExpenseAuthorizations++
		m.ExpenseSpend[a.Category] += a.Amount
	}

	m.ActiveRestaurants = len(restaurants)
	m.ActiveCouriers = len(couriers)
	m.TakeRate = generic.Ratio(float64(m.PlatformRevenue), float64(m.GMV))
	m.AverageOrderValue = generic.Mean(m.GMV, m.TotalOrders)
	m.PaymentFailureRate = generic.Ratio(float64(m.FailedOrders), float64(len(payments)))
	m.OrdersPerRestaurant = generic.Ratio(float64(m.TotalOrders), float64(m.ActiveRestaurants))
	m.OrdersPerCourier = generic.Ratio(float64(m.TotalOrders), float64(m.ActiveCouriers))
	if ds.Periods > 0 {
		m.CourierUtilization = min(1, generic.Ratio(m.OrdersPerCourier, float64(courierCapacity*ds.Periods)))
	}
	return m
}
