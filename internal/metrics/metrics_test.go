package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(claims.WithLabelValues("won"))
	IncClaim("won")
	assert.Equal(t, before+1, testutil.ToFloat64(claims.WithLabelValues("won")))

	before = testutil.ToFloat64(transitions.WithLabelValues("assigned"))
	IncTransition("assigned")
	assert.Equal(t, before+1, testutil.ToFloat64(transitions.WithLabelValues("assigned")))

	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/bookings", "200")
		IncGRPC("/servicebuddy.bookings.v1.BookingService/GetBooking", "OK")
		ObserveRequest("http", "create_booking", time.Now())
		IncNotification("push", "sent")
		IncSyncTask("completed")
		IncBackup("ok")
	})
}
