package agenda

// Strategy selects the conflict-resolution ordering (spec §4.7).
type Strategy string

const (
	StrategySalience   Strategy = "salience"
	StrategyLEX        Strategy = "lex"
	StrategyMEA        Strategy = "mea"
	StrategyDepth      Strategy = "depth"
	StrategyBreadth    Strategy = "breadth"
	StrategySimplicity Strategy = "simplicity"
	StrategyComplexity Strategy = "complexity"
	StrategyRandom     Strategy = "random"
)

// less returns whether x should fire before y under this strategy.
func (s Strategy) less(x, y *Activation) bool {
	switch s {
	case StrategyLEX:
		return x.Recency > y.Recency
	case StrategyMEA:
		if x.Recency != y.Recency {
			return x.Recency > y.Recency
		}
		return x.Specificity > y.Specificity
	case StrategyDepth:
		return x.Recency > y.Recency
	case StrategyBreadth:
		return x.Recency < y.Recency
	case StrategySimplicity:
		if x.Specificity != y.Specificity {
			return x.Specificity < y.Specificity
		}
		return x.Recency > y.Recency
	case StrategyComplexity:
		if x.Specificity != y.Specificity {
			return x.Specificity > y.Specificity
		}
		return x.Recency > y.Recency
	case StrategyRandom:
		return x.randomRank < y.randomRank
	case StrategySalience:
		fallthrough
	default:
		if x.Salience != y.Salience {
			return x.Salience > y.Salience
		}
		return x.Recency > y.Recency
	}
}
