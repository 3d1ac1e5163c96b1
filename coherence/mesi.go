package coherence

// MESI returns the protocol with an Exclusive state. A read miss that no
// other cache shares lands in E, and a later store upgrades silently.
func MESI() *Family {
	f := newFamily("MESI",
		StateI, StateS, StateE, StateM,
		StateISE, StateIM, StateSM,
	).withBase()

	f.onCache(StateS, stay(ActSetShared|ActDataToProc), Load).
		onCache(StateS, do(ActSendGetM|ActCountMiss, StateSM), Store)

	f.onCache(StateE, stay(ActDataToProc), Load).
		onCache(StateE, do(ActDataToProc|ActCountSilentUpgrade, StateM), Store)

	f.onSnoop(StateS, stay(ActSetShared), GetS).
		onSnoop(StateS, do(ActNone, StateI), GetM)

	f.onSnoop(StateE, do(ActSetShared|ActDataOnBus, StateS), GetS).
		onSnoop(StateE, do(ActDataOnBus, StateI), GetM)

	f.onSnoop(StateM, do(ActSetShared|ActDataOnBus, StateS), GetS).
		onSnoop(StateM, do(ActDataOnBus, StateI), GetM)

	f.onSnoop(StateISE, stay(ActNone), GetS, GetM).
		onSnoop(StateISE, Transition{
			Actions:      ActDataToProc,
			Next:         StateE,
			NextIfShared: StateS,
		}, Data)

	f.onSnoop(StateSM, stay(ActSetShared), GetS).
		onSnoop(StateSM, Transition{NextIfForeign: StateIM}, GetM).
		onSnoop(StateSM, do(ActDataToProc, StateM), Data)

	return f
}
