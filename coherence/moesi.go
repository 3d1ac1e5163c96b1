package coherence

// MOESI returns the five-state protocol, combining the silent E to M upgrade
// of MESI with the dirty sharing of MOSI.
func MOESI() *Family {
	f := newFamily("MOESI",
		StateI, StateS, StateE, StateO, StateM,
		StateISE, StateIM, StateSM, StateOM,
	).withBase()

	f.onCache(StateS, stay(ActSetShared|ActDataToProc), Load).
		onCache(StateS, do(ActSendGetM|ActCountMiss, StateSM), Store)

	f.onCache(StateE, stay(ActDataToProc), Load).
		onCache(StateE, do(ActDataToProc|ActCountSilentUpgrade, StateM), Store)

	f.onCache(StateO, stay(ActDataToProc), Load).
		onCache(StateO, do(ActSendGetM|ActCountMiss, StateOM), Store)

	f.onSnoop(StateS, stay(ActSetShared), GetS).
		onSnoop(StateS, do(ActNone, StateI), GetM)

	f.onSnoop(StateE, do(ActSetShared|ActDataOnBus, StateS), GetS).
		onSnoop(StateE, do(ActDataOnBus, StateI), GetM)

	f.onSnoop(StateO, stay(ActSetShared|ActDataOnBus), GetS).
		onSnoop(StateO, do(ActDataOnBus, StateI), GetM)

	f.onSnoop(StateM, do(ActSetShared|ActDataOnBus, StateO), GetS).
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

	f.onSnoop(StateOM, stay(ActSetShared|ActDataOnBus), GetS).
		onSnoop(StateOM, Transition{
			Actions:       ActSetShared | ActDataOnBus,
			NextIfForeign: StateIM,
		}, GetM).
		onSnoop(StateOM, do(ActDataToProc, StateM), Data)

	return f
}
