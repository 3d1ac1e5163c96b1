package coherence

// MOSI returns the protocol with an Owner state. A Modified line keeps the
// dirty data as Owner when another cache reads it, and the owner answers
// every later read instead of memory.
//
// An upgrading Shared line (SM) that snoops a GETM asserts the shared line
// and keeps waiting in SM rather than falling back to IM as the other
// families do.
func MOSI() *Family {
	f := newFamily("MOSI",
		StateI, StateS, StateO, StateM,
		StateIS, StateIM, StateSM, StateOM,
	).withBase()

	f.onCache(StateS, stay(ActDataToProc), Load).
		onCache(StateS, do(ActSendGetM|ActCountMiss, StateSM), Store)

	f.onCache(StateO, stay(ActDataToProc), Load).
		onCache(StateO, do(ActSendGetM|ActCountMiss, StateOM), Store)

	f.onSnoop(StateS, stay(ActSetShared), GetS).
		onSnoop(StateS, do(ActNone, StateI), GetM)

	f.onSnoop(StateO, stay(ActSetShared|ActDataOnBus), GetS).
		onSnoop(StateO, do(ActDataOnBus, StateI), GetM)

	f.onSnoop(StateM, do(ActSetShared|ActDataOnBus, StateO), GetS).
		onSnoop(StateM, do(ActDataOnBus, StateI), GetM)

	f.onSnoop(StateIS, stay(ActNone), GetS, GetM).
		onSnoop(StateIS, do(ActDataToProc, StateS), Data)

	f.onSnoop(StateSM, stay(ActSetShared), GetS, GetM).
		onSnoop(StateSM, do(ActDataToProc, StateM), Data)

	f.onSnoop(StateOM, stay(ActSetShared|ActDataOnBus), GetS).
		onSnoop(StateOM, Transition{
			Actions:       ActSetShared | ActDataOnBus,
			NextIfForeign: StateIM,
		}, GetM).
		onSnoop(StateOM, do(ActDataToProc, StateM), Data)

	return f
}
