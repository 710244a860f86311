package board

// Kind distinguishes special block behaviour
type Kind uint8

const (
	Normal Kind = iota
	Void
	Explosive
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Explosive:
		return "explosive"
	default:
		return "normal"
	}
}

// GarbageColor is the palette index of blocks not placed by the player
const GarbageColor uint8 = 0

const (
	BaseBlockHP      = 3   // hp of a locked piece cell before defense
	GarbageRowHP     = 999 // hp of inserted indestructible rows before defense
	ExplosiveBlastHP = 5   // player damage when an explosive block is destroyed
)

// Block is the content of one occupied cell
type Block struct {
	Color          uint8
	HP             int
	MaxHP          int
	Indestructible bool
	CreatedAt      float64 // simulation seconds; never changes after creation
	Kind           Kind
}

// NewBlock creates a destructible block with full hp
func NewBlock(color uint8, hp int, kind Kind, createdAt float64) *Block {
	return &Block{
		Color:     color,
		HP:        hp,
		MaxHP:     hp,
		CreatedAt: createdAt,
		Kind:      kind,
	}
}

// IsGarbage reports whether the block carries the garbage color
func (b *Block) IsGarbage() bool {
	return b.Color == GarbageColor
}
