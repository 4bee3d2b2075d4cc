package domain

import "fmt"

// Balances is the mutable part of a ledger account, in settlement micros.
type Balances struct {
	Available         int64
	Frozen            int64
	LifetimeDeposited int64
	LifetimeWithdrawn int64
}

// Effect is a signed delta applied to Balances as one unit.
type Effect struct {
	Available int64
	Frozen    int64
	Deposited int64
	Withdrawn int64
}

func (e Effect) IsZero() bool {
	return e == Effect{}
}

func (e Effect) plus(o Effect) Effect {
	return Effect{
		Available: e.Available + o.Available,
		Frozen:    e.Frozen + o.Frozen,
		Deposited: e.Deposited + o.Deposited,
		Withdrawn: e.Withdrawn + o.Withdrawn,
	}
}

// Apply returns b with e applied. b is never modified.
func (b Balances) Apply(e Effect) (Balances, error) {
	available, ok1 := addMicros(b.Available, e.Available)
	frozen, ok2 := addMicros(b.Frozen, e.Frozen)
	deposited, ok3 := addMicros(b.LifetimeDeposited, e.Deposited)
	withdrawn, ok4 := addMicros(b.LifetimeWithdrawn, e.Withdrawn)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return b, fmt.Errorf("%w: balance would overflow", ErrBalanceInvariant)
	}
	next := Balances{
		Available:         available,
		Frozen:            frozen,
		LifetimeDeposited: deposited,
		LifetimeWithdrawn: withdrawn,
	}
	if next.Available < 0 {
		return b, fmt.Errorf("%w: available %d, required %d", ErrInsufficientFunds, b.Available, -e.Available)
	}
	if next.Frozen < 0 || next.LifetimeDeposited < 0 || next.LifetimeWithdrawn < 0 {
		return b, fmt.Errorf("%w: frozen would become %d", ErrBalanceInvariant, next.Frozen)
	}
	return next, nil
}

func addMicros(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// Account primitives. Entry and exit effects are compositions of these.

func freeze(x int64) Effect { return Effect{Available: -x, Frozen: x} }
func holdIncoming(x int64) Effect { return Effect{Frozen: x} }
func unfreezeToAvailable(x int64) Effect { return Effect{Available: x, Frozen: -x} }
func releaseFrozen(x int64) Effect { return Effect{Frozen: -x} }
func recordDeposit(x int64) Effect { return Effect{Deposited: x} }
func recordWithdrawal(x int64) Effect { return Effect{Withdrawn: x} }

// EntryEffect is applied atomically with the creation of a record.
func EntryEffect(kind Kind, amount int64) Effect {
	switch kind.Direction() {
	case DirectionCredit:
		return holdIncoming(amount)
	case DirectionDebit:
		return freeze(amount)
	default:
		return Effect{}
	}
}

// ExitEffect is applied when a record leaves the in-flight phase.
func ExitEffect(kind Kind, to Phase, amount int64) Effect {
	switch {
	case kind.IsCredit() && to == PhaseSucceeded:
		e := unfreezeToAvailable(amount)
		if kind == KindDeposit {
			e = e.plus(recordDeposit(amount))
		}
		return e
	case kind.IsCredit() && to == PhaseCancelled:
		return releaseFrozen(amount)
	case kind.IsDebit() && to == PhaseSucceeded:
		e := releaseFrozen(amount)
		if kind == KindWithdraw {
			e = e.plus(recordWithdrawal(amount))
		}
		return e
	case kind.IsDebit() && to == PhaseCancelled:
		return unfreezeToAvailable(amount)
	default:
		return Effect{}
	}
}

// TransitionPlan describes a validated status move and its balance effect.
type TransitionPlan struct {
	From   Status
	To     Status
	Effect Effect
}

// Terminal reports whether the plan ends the record's lifecycle.
func (p TransitionPlan) Terminal() bool {
	return p.To.IsTerminal()
}

// PlanTransition validates from -> to for a record of kind carrying amount.
// A terminal source always fails; when to also equals from the error matches
// both ErrTerminalState and ErrNoOpTransition.
func PlanTransition(kind Kind, from, to Status, amount int64) (TransitionPlan, error) {
	if from.IsTerminal() {
		if from == to {
			return TransitionPlan{}, fmt.Errorf("%w: %w: %s", ErrTerminalState, ErrNoOpTransition, from)
		}
		return TransitionPlan{}, fmt.Errorf("%w: %s -> %s", ErrTerminalState, from, to)
	}
	if from == to {
		return TransitionPlan{}, fmt.Errorf("%w: %s", ErrNoOpTransition, from)
	}
	if to.Phase() == 0 {
		return TransitionPlan{}, fmt.Errorf("%w: unrecognized status %q", ErrInvalidInput, to)
	}

	plan := TransitionPlan{From: from, To: to}
	if to.IsTerminal() {
		plan.Effect = ExitEffect(kind, to.Phase(), amount)
	}
	return plan, nil
}
