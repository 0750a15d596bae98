// Package reorder implementa o buffer de reordenação do receptor (§3, §4.5):
// um vetor de slots indexado por seq mod window_size, que retém frames
// chegados fora de ordem até que a entrega em sequência os alcance.
package reorder

// Buffer é o buffer de reordenação do receptor.
type Buffer struct {
	windowSize int
	slots      []slot
}

type slot struct {
	seq      uint32
	payload  []byte
	occupied bool
}

// New cria um buffer de reordenação dimensionado para a janela negociada.
func New(windowSize int) *Buffer {
	if windowSize <= 0 {
		windowSize = 1
	}
	return &Buffer{windowSize: windowSize, slots: make([]slot, windowSize)}
}

func (b *Buffer) index(seq uint32) int {
	return int(seq) % b.windowSize
}

// Put armazena o payload de um frame fora de ordem, sobrescrevendo qualquer
// ocupante anterior do slot com seq menor (já obsoleto para a entrega).
func (b *Buffer) Put(seq uint32, payload []byte) {
	idx := b.index(seq)
	if b.slots[idx].occupied && b.slots[idx].seq >= seq {
		return
	}
	b.slots[idx] = slot{seq: seq, payload: payload, occupied: true}
}

// Take retorna e remove o payload armazenado para seq, se presente.
func (b *Buffer) Take(seq uint32) ([]byte, bool) {
	idx := b.index(seq)
	s := b.slots[idx]
	if !s.occupied || s.seq != seq {
		return nil, false
	}
	b.slots[idx] = slot{}
	return s.payload, true
}

// Has relata se seq está presente no buffer sem removê-lo.
func (b *Buffer) Has(seq uint32) bool {
	idx := b.index(seq)
	return b.slots[idx].occupied && b.slots[idx].seq == seq
}
