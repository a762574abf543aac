package payment

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewStripeLinkerRequiresCredentials(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	assert.Nil(t, NewStripeLinker(logger, "", ""))
	assert.Nil(t, NewStripeLinker(logger, "sk_test_123", ""))
	assert.Nil(t, NewStripeLinker(logger, "", "price_123"))
	assert.NotNil(t, NewStripeLinker(logger, "sk_test_123", "price_123"))
}
