package coherence

// MSI returns the three-state protocol. A Modified line that sees another
// reader writes its data back over the bus and drops to Shared.
func MSI() *Family {
	f := newFamily("MSI",
		StateI, StateS, StateM,
		StateIS, StateIM, StateSM,
	).withBase()

	f.onCache(StateS, stay(ActDataToProc), Load).
		onCache(StateS, do(ActSendGetM|ActCountMiss, StateSM), Store)

	f.onSnoop(StateS, stay(ActSetShared), GetS).
		onSnoop(StateS, do(ActSetShared, StateI), GetM)

	f.onSnoop(StateM, do(ActSetShared|ActDataOnBus, StateS), GetS).
		onSnoop(StateM, do(ActSetShared|ActDataOnBus, StateI), GetM)

	f.onSnoop(StateIS, stay(ActNone), GetS, GetM).
		onSnoop(StateIS, do(ActDataToProc, StateS), Data)

	f.onSnoop(StateSM, stay(ActSetShared), GetS).
		onSnoop(StateSM, Transition{NextIfForeign: StateIM}, GetM).
		onSnoop(StateSM, do(ActDataToProc, StateM), Data)

	return f
}
