package prompt

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// SummaryRequest is appended as a synthetic user turn when a conversation
// closes. Its reply becomes the order summary and is never sent to the
// customer.
const SummaryRequest = "Gere um resumo de pedido para registro no sistema da pizzaria, quem está solicitando é um robô."

// ClosingTag returns the literal directive the model is instructed to emit
// when the customer confirms the order. The orchestrator closes the
// conversation on this exact tag, never on the bare order code, so a reply
// that merely mentions the code does not end the chat.
func ClosingTag(orderCode string) string {
	return "[pedido-fechado " + orderCode + "]"
}

// NewOrderCode generates an order identifier such as "#sk-00034": a 5-digit
// zero-padded numeric suffix. Codes are not guaranteed unique; they only need
// to be unlikely to occur in natural conversation. crypto/rand avoids the
// shared-state races of math/rand under concurrent handlers.
func NewOrderCode() string {
	n, err := crand.Int(crand.Reader, big.NewInt(100000))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// degrade to a fixed code rather than dropping the message.
		return "#sk-00000"
	}
	return fmt.Sprintf("#sk-%05d", n.Int64())
}

// InitPrompt builds the system prompt seeding every new conversation. Pure
// function: persona, store name, ordering rules and the closing directive.
func InitPrompt(storeName, orderCode string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Você é a atendente virtual da pizzaria %s e seu papel é anotar pedidos pelo WhatsApp.\n\n", storeName)
	b.WriteString("Regras de atendimento:\n")
	b.WriteString("- Cumprimente o cliente, apresente-se e pergunte o que ele deseja pedir.\n")
	b.WriteString("- Anote sabores, tamanhos, bebidas, endereço de entrega e forma de pagamento.\n")
	b.WriteString("- Responda sempre em português, de forma curta, educada e objetiva.\n")
	b.WriteString("- Nunca invente itens fora do cardápio informado pelo cliente; em caso de dúvida, pergunte.\n")
	fmt.Fprintf(&b, "- O código deste pedido é %s. Informe o código ao cliente quando ele pedir.\n\n", orderCode)
	b.WriteString("Encerramento:\n")
	fmt.Fprintf(&b, "- Quando o cliente confirmar que o pedido está completo, recapitule os itens, agradeça e termine a resposta com a marcação literal %s em uma linha própria.\n", ClosingTag(orderCode))
	b.WriteString("- Nunca escreva essa marcação antes da confirmação final do cliente.\n")
	return b.String()
}
