package debate

import "fmt"

// DefaultParticipants returns the classic three-seat lineup: Host moderates,
// John argues for the topic and Jack argues against it.
func DefaultParticipants(topic string) []Participant {
	return []Participant{
		{
			Name: "Host",
			Role: RoleModerator,
			Persona: fmt.Sprintf("You are the host of a debate on: %s. "+
				"RULES: 1) Welcome everyone briefly, "+
				"2) Let John and Jack debate naturally (do NOT announce winner yet), "+
				"3) Only moderate the discussion, let it flow. "+
				"Keep responses under 30 words. DO NOT announce winner until specifically asked.", topic),
		},
		{
			Name: "John",
			Role: RoleProponent,
			Persona: fmt.Sprintf("You are John, supporting: %s. "+
				"Make concise, strong arguments. Under 30 words per response. Be persuasive.", topic),
		},
		{
			Name: "Jack",
			Role: RoleOpponent,
			Persona: fmt.Sprintf("You are Jack, opposing: %s. "+
				"Make concise counter-arguments. Under 30 words per response. Challenge effectively.", topic),
		},
	}
}

// Opening is the kickoff instruction sent when no turn has been spoken yet.
func Opening(topic string) string {
	return fmt.Sprintf("Natural debate on: %q. Host: welcome. John: argue for. Jack: argue against. Keep it flowing naturally.", topic)
}
