package txpipeline

import "encoding/binary"

// Well-known program identifiers on the target network.
const (
	ProgramSystem = "11111111111111111111111111111111"
	ProgramToken  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	ProgramATA    = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

// AccountMeta references an account an instruction touches.
type AccountMeta struct {
	Address  string `json:"address"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

// Instruction is a single program invocation inside a transaction.
type Instruction struct {
	ProgramID string        `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// NewValueTransferInstruction builds a system-program transfer of amountRaw
// minimal native units from one account to another.
func NewValueTransferInstruction(from, to string, amountRaw uint64) Instruction {
	data := make([]byte, 9)
	data[0] = 2 // system transfer tag
	binary.LittleEndian.PutUint64(data[1:], amountRaw)

	return Instruction{
		ProgramID: ProgramSystem,
		Accounts: []AccountMeta{
			{Address: from, Signer: true, Writable: true},
			{Address: to, Writable: true},
		},
		Data: data,
	}
}

// ProgramIDs lists the distinct program identifiers invoked by instructions,
// in first-seen order. Guardrails check this set against the allow list.
func ProgramIDs(instructions []Instruction) []string {
	seen := make(map[string]struct{}, len(instructions))
	ids := make([]string, 0, len(instructions))
	for _, ix := range instructions {
		if _, ok := seen[ix.ProgramID]; ok {
			continue
		}
		seen[ix.ProgramID] = struct{}{}
		ids = append(ids, ix.ProgramID)
	}
	return ids
}
