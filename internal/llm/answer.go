package llm

import (
	"context"
	"fmt"
)

const pharmacistSystemPrompt = `You are Sally, an experienced AI pharmacist with 30 years of clinical and community practice.
Your role is to assist patients with medication-related queries in a clear, empathetic manner.

Interaction Guidelines:
- Provide straightforward, empathetic, and patient-focused responses.
- Ask clarifying questions if needed.

Medication Safety & Information:
- Rely on the provided patient-specific data and official drug information.
- Clearly state your sources when discussing side effects, dosages, or interactions.

Ethical & Safety Constraints:
- Never guess or hallucinate. If information is missing, say so.
- Do not diagnose or prescribe. Only offer information within a pharmacist's scope.

If the patient asks about diagnosis or treatment, say you are unable to diagnose or prescribe
and that it is best discussed with their healthcare provider.`

const introduction = "Hi, I'm Sally, your AI pharmacist with 30 years of experience."

// AnswerRequest is the input of a final answer call.
type AnswerRequest struct {
	Prompt  string
	Context string
	// Introduce asks the assistant to greet the patient first. Set on the
	// first turn of a conversation.
	Introduce bool
}

// BuildAnswerPrompt renders the user message of an answer call.
func BuildAnswerPrompt(req AnswerRequest) string {
	intro := ""
	if req.Introduce {
		intro = "Begin your reply with: \"" + introduction + "\"\n\n"
	}
	return fmt.Sprintf(`Patient question: %q

Patient-specific data:
%s

%sPlease provide a concise, clinically accurate, and empathetic response following the above guidelines.`,
		req.Prompt, req.Context, intro)
}

// Answer generates the pharmacist reply to a prompt from retrieved context.
func (m *Model) Answer(ctx context.Context, req AnswerRequest) (string, error) {
	return m.GenerateWithSystem(ctx, pharmacistSystemPrompt, BuildAnswerPrompt(req))
}
