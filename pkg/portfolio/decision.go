package portfolio

// Kind tags which variant a Decision carries, following the teacher's
// dynamic-JSON-tolerant design note generalized into an explicit
// tagged-variant decoder rather than reflection-based dispatch.
type Kind string

const (
	KindOpen   Kind = "open"
	KindClose  Kind = "close"
	KindAdjust Kind = "adjust"
)

// OpenParams opens or adds to a position. Leverage must already be
// resolved by the caller (0 is the "ask the LLM" sentinel and must
// never reach the engine -- it is rejected as BadQuantity here).
type OpenParams struct {
	Symbol   string
	Side     Side
	Qty      float64
	Leverage int
}

// CloseParams closes all or part of an existing position. A nil Qty
// closes the full position.
type CloseParams struct {
	Symbol string
	Side   Side
	Qty    *float64
}

// AdjustParams changes model-level settings without touching positions
// or cash; it never emits a Trade.
type AdjustParams struct {
	MaxPositions *int
	Leverage     *int
	AutoBuy      *bool
	AutoSell     *bool
	BuyPrompt    *string
	SellPrompt   *string
}

// Decision is the tagged union Apply accepts. Exactly one of Open/
// Close/Adjust is set, matching Kind.
type Decision struct {
	Kind   Kind
	Open   *OpenParams
	Close  *CloseParams
	Adjust *AdjustParams
}

// NewOpen constructs an Open decision.
func NewOpen(p OpenParams) Decision { return Decision{Kind: KindOpen, Open: &p} }

// NewClose constructs a Close decision.
func NewClose(p CloseParams) Decision { return Decision{Kind: KindClose, Close: &p} }

// NewAdjust constructs an Adjust decision.
func NewAdjust(p AdjustParams) Decision { return Decision{Kind: KindAdjust, Adjust: &p} }
