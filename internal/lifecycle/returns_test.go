package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shipbridge/sync-engine/internal/domain"
)

func TestCommerceReturnUpdateMapsStatusAndReason(t *testing.T) {
	r := domain.Return{Status: domain.ReturnAccepted, Reason: "damaged in transit"}
	update := commerceReturnUpdate(r)
	assert.Equal(t, "return_ACCEPTED", update.Status)
	assert.Equal(t, "damaged in transit", update.Reason)
}
