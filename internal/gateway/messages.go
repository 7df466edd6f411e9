package gateway

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/leakguard/internal/channel"
	"github.com/stellarlinkco/leakguard/internal/store"
)

// Keyboard button labels. Incoming text equal to a label triggers its route.
const (
	ButtonSubscribe   = "🔔 Subscribe to alerts"
	ButtonUnsubscribe = "🚫 Unsubscribe from alerts"
	ButtonTips        = "💡 Security tips"
	ButtonCheckURL    = "🔍 Check URL"
	ButtonCheckEmail  = "📧 Check email"
	ButtonCheckPhone  = "📱 Check phone"
	ButtonCheckIP     = "🌐 Check IP"
	ButtonTwoFactor   = "🔐 2FA info"
)

var mainKeyboard = [][]string{
	{ButtonSubscribe, ButtonUnsubscribe},
	{ButtonTips},
	{ButtonCheckURL},
	{ButtonCheckEmail},
	{ButtonCheckPhone},
	{ButtonCheckIP},
	{ButtonTwoFactor},
}

// Commands is the command menu published to the chat platform.
var Commands = []channel.Command{
	{Name: "start", Description: "Start the bot and show the menu"},
	{Name: "status", Description: "Show your subscription and check history"},
	{Name: "help", Description: "How to use the bot"},
}

const (
	msgWelcome = "🔐 Hi! I help you protect your personal data.\n" +
		"Choose one of the options below, or just send me an email, phone number, URL or IP address."

	msgHelp = "Send me any of these and I will check it:\n" +
		"📧 an email address, e.g. `name@example.com`\n" +
		"📱 a phone number, digits only, at least 10\n" +
		"🔍 a link starting with `http`\n" +
		"🌐 an IPv4 address, e.g. `8.8.8.8`\n\n" +
		"/status shows your subscription and the values that were flagged."

	msgSubscribed        = "✅ You are now subscribed to breach alerts!"
	msgAlreadySubscribed = "⚠️ You are already subscribed."
	msgUnsubscribed      = "✅ You have unsubscribed from alerts."
	msgNotSubscribed     = "⚠️ You were not subscribed."
	msgSubscribeFailed   = "❌ Could not update your subscription. Please try again later."
	msgStatusFailed      = "❌ Could not load your status. Please try again later."
	msgNoUserID          = "❌ Could not identify your account."

	msgPromptURL   = "Enter a URL to check:"
	msgPromptEmail = "Enter an email to check:"
	msgPromptPhone = "Enter a phone number to check:"
	msgPromptIP    = "Enter an IP address to check:"

	msgTwoFactor = "🔐 Two-factor authentication (2FA) adds a second step to signing in, on top of your password.\n\n" +
		"Turn it on for every account you care about.\n\n" +
		"Where to set it up:\n" +
		"- Google: https://myaccount.google.com/security\n" +
		"- Facebook: https://www.facebook.com/settings?tab=security\n" +
		"- Twitter: https://twitter.com/settings/security\n" +
		"- Telegram: Settings > Privacy and Security > Two-Step Verification\n" +
		"- Steam: https://store.steampowered.com/twofactor/manage\n" +
		"- VK: https://vk.com/settings?act=security"
)

var securityTips = []string{
	"✅ Use strong passwords and a password manager.",
	"✅ Turn on two-factor authentication (2FA).",
	"✅ Never follow suspicious links.",
	"✅ Check your data for leaks regularly.",
	"✅ Do not install untrusted apps.",
}

func renderStatus(subscribed bool, hist store.UserHistory) string {
	var sb strings.Builder
	if subscribed {
		sb.WriteString("🔔 You are subscribed to breach alerts.\n")
	} else {
		sb.WriteString("🔕 You are not subscribed to breach alerts.\n")
	}

	if hist.Len() == 0 {
		sb.WriteString("\nNothing in your check history yet.")
		return sb.String()
	}

	sb.WriteString("\n**Your check history**\n")
	writeList(&sb, "📧 Breached emails", hist.Email)
	writeList(&sb, "📱 Breached phones", hist.Phone)
	writeList(&sb, "🌐 Checked IPs", hist.IP)
	return strings.TrimRight(sb.String(), "\n")
}

func writeList(sb *strings.Builder, title string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s (%d):\n", title, len(values))
	for _, v := range values {
		fmt.Fprintf(sb, "  • %s\n", v)
	}
}
