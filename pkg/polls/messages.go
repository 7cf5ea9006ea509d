package polls

import "strings"

const (
	// Usage explains how to create a poll.
	Usage = "To create poll please text: `/poll \"Question\" \"Option 1\" \"Option 2\"`. To display usage write `/poll help`"

	// Help lists the supported commands.
	Help = "Following commands are available:\n" +
		"`/poll \"Question\" \"Option 1\" \"Option 2\"` will create poll\n" +
		"`/poll help` to show help"

	// Greeting is sent when the bot joins a conversation.
	Greeting = "Hello, I'm Poll App. " + Usage

	// WrongCommand is the fallback for a /poll command that could not be parsed.
	WrongCommand = "I couldn't parse that poll. " + Usage

	// NoData is the fallback when results are requested before any vote.
	NoData = "There are no data for this poll yet."

	// GoodAppReply answers the "good app" easter egg.
	GoodAppReply = "😇"

	// ShowResultsText labels the show-results button of the overview.
	ShowResultsText = "show results"
)

// VersionReply reports the running build.
func VersionReply(version string) string {
	return "My version is: *" + version + "*"
}

// invalidPollReply lists the problems of a poll followed by the usage.
func invalidPollReply(violations []string) string {
	return strings.Join(violations, " ") + " " + Usage
}
