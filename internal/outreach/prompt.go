package outreach

import (
	"fmt"

	"github.com/outreachbackend/internal/models"
)

const promptTemplate = `Create a personalized LinkedIn icebreaker message for the following profile:
Name: %s
Job Title: %s
Company: %s

Requirements:
- Keep it concise (1-2 sentences)
- Be professional and engaging
- Reference their role or company
- Avoid being overly salesy
- Make it feel personal and genuine

Example format: "Hi [Name], I noticed your work as [Title] at [Company] and found your approach to [relevant topic] really interesting!"`

// BuildPrompt renders the generation prompt for a profile. Only the identity
// fields are embedded so that cached text stays valid for the fingerprint.
func BuildPrompt(p models.Profile) string {
	return fmt.Sprintf(promptTemplate, p.Name, p.Title, p.Company)
}
