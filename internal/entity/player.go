package entity

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
}

func (that *Player) HasSymbol() bool {
	return that.Symbol == PlayerX || that.Symbol == PlayerO
}
