package dispatch

import (
	"fmt"
	"strconv"

	"github.com/stellarlinkco/leakguard/internal/classify"
	"github.com/stellarlinkco/leakguard/internal/lookup"
)

// InvalidInputMessage is the reply to text that is not a checkable value.
const InvalidInputMessage = "❌ Please enter a valid email, phone number, URL or IP address."

const (
	urlErrorMessage = "❌ Could not check the link. Please try again later."
	ipErrorMessage  = "❌ Could not check the IP address. Please try again later."
	genericError    = "❌ Could not complete the check. Please try again later."
)

// Render turns a verdict into the one-line reply sent to the user.
func Render(v lookup.Verdict) string {
	switch v.Kind {
	case classify.KindEmail:
		if v.Outcome == lookup.OutcomeBreached {
			return fmt.Sprintf("⚠️ The email %s was found in breach databases! Change your password immediately.", v.Value)
		}
		return fmt.Sprintf("✅ Email %s was not found in any breach.", v.Value)

	case classify.KindPhone:
		if v.Outcome == lookup.OutcomeBreached {
			return fmt.Sprintf("⚠️ The phone number %s was found in breach databases! Be careful with calls and messages.", v.Value)
		}
		return fmt.Sprintf("✅ Phone number %s was not found in any breach.", v.Value)

	case classify.KindURL:
		switch v.Outcome {
		case lookup.OutcomeProviderError:
			return urlErrorMessage
		case lookup.OutcomeRisky:
			return fmt.Sprintf("❌ The link %s is dangerous: %d engines flagged it as malicious!", v.Value, v.Detections)
		default:
			return fmt.Sprintf("✅ The link %s is safe.", v.Value)
		}

	case classify.KindIP:
		score := formatScore(v.Score)
		switch {
		case v.Outcome == lookup.OutcomeProviderError:
			return ipErrorMessage
		case v.Severity == lookup.SeverityHigh:
			return fmt.Sprintf("❌ IP address %s has a high risk score: %s/100.", v.Value, score)
		case v.Severity == lookup.SeverityMedium:
			return fmt.Sprintf("⚠️ IP address %s has a medium risk score: %s/100.", v.Value, score)
		default:
			return fmt.Sprintf("✅ IP address %s looks safe: %s/100.", v.Value, score)
		}
	}

	if v.Outcome == lookup.OutcomeProviderError {
		return genericError
	}
	return InvalidInputMessage
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
