package analysis

// User-visible correction notes appended by ValidateDecision when a
// proposed price had to move onto the tick grid.
const (
	NoteEntrySnapped = "note: entry price rounded to the tick increment"
	NoteStopSnapped  = "note: stop-loss price rounded to the tick increment"
)

var validHorizons = map[string]bool{
	HorizonScalp: true, HorizonIntraday: true, Horizon1to3d: true, HorizonSwing: true,
}

// ValidateDecision absorbs a raw decision object from the
// summarization model into a structurally complete Plan. Invalid enums
// fall back to safe defaults (never guess a directional call), price
// fields are rounded to market precision and snapped to the tick grid,
// confidence is clamped to [0,1] and rationale truncated to five
// entries. It never fails; garbage degrades field by field.
func ValidateDecision(raw map[string]any, market Market) *Plan {
	out := &Plan{}

	out.Decision = coerceString(raw["decision"])
	if out.Decision != DecisionBuy && out.Decision != DecisionSell && out.Decision != DecisionHold {
		out.Decision = DecisionHold
	}
	out.Horizon = coerceString(raw["horizon"])
	if !validHorizons[out.Horizon] {
		out.Horizon = HorizonIntraday
	}

	out.Notes = coerceStringSlice(raw["notes"])
	if out.Notes == nil {
		out.Notes = []string{}
	}
	out.Rationale = coerceStringSlice(raw["rationale"])
	if out.Rationale == nil {
		out.Rationale = []string{}
	}
	if len(out.Rationale) > 5 {
		out.Rationale = out.Rationale[:5]
	}

	levels := coerceMap(raw["levels"])
	out.Levels.SR = SanitizeSR(coerceMap(levels["sr"]), market)
	if entry, ok := coerceFloat(levels["entry"]); ok {
		rounded := RoundByMarket(entry, market)
		snapped := SnapToTick(rounded, market)
		out.Levels.Entry = floatPtr(snapped)
		if snapped != rounded {
			out.Notes = append(out.Notes, NoteEntrySnapped)
		}
	}
	if sl, ok := coerceFloat(levels["sl"]); ok {
		rounded := RoundByMarket(sl, market)
		snapped := SnapToTick(rounded, market)
		out.Levels.SL = floatPtr(snapped)
		if snapped != rounded {
			out.Notes = append(out.Notes, NoteStopSnapped)
		}
	}
	if tp := coerceFloatSlice(levels["tp"]); tp != nil {
		snapped := make([]float64, 0, len(tp))
		for _, v := range tp {
			snapped = append(snapped, SnapToTick(RoundByMarket(v, market), market))
		}
		out.Levels.TP = snapped
	}

	if conf, ok := coerceFloat(raw["confidence"]); ok {
		out.Confidence = clamp01(conf)
	} else {
		out.Confidence = 0.5
	}

	out.Orderbook = coerceOrderbook(coerceMap(raw["orderbook"]))
	out.Extracted = coerceExtracted(coerceMap(raw["extracted"]))
	out.Scenarios = coerceScenarios(raw["scenarios"])
	return out
}

// coerceOrderbook mirrors the wire schema without recomputing derived
// metrics: the model may legitimately report spread/imbalance it read
// off the screenshot even when it returned no levels.
func coerceOrderbook(raw map[string]any) Orderbook {
	ob := Orderbook{Levels: []OrderbookLevel{}, Pressure: PressureNeutral}
	if raw == nil {
		return ob
	}
	for _, item := range coerceSlice(raw["levels"]) {
		row := coerceMap(item)
		price, ok := coerceFloat(row["price"])
		if !ok {
			continue
		}
		bid, bidOK := coerceFloat(row["bid"])
		if !bidOK {
			bid = 0
		}
		ask, askOK := coerceFloat(row["ask"])
		if !askOK {
			ask = 0
		}
		ob.Levels = append(ob.Levels, OrderbookLevel{Price: price, Bid: bid, Ask: ask})
	}
	if spread, ok := coerceFloat(raw["spread"]); ok {
		ob.Spread = floatPtr(spread)
	}
	if imb, ok := coerceFloat(raw["imbalance"]); ok {
		ob.Imbalance = floatPtr(imb)
	}
	switch coerceString(raw["pressure"]) {
	case PressureBid:
		ob.Pressure = PressureBid
	case PressureAsk:
		ob.Pressure = PressureAsk
	}
	return ob
}

func coerceExtracted(raw map[string]any) Extracted {
	ex := Extracted{
		Ticker:    coerceString(raw["ticker"]),
		Timeframe: coerceString(raw["timeframe"]),
		UISource:  coerceString(raw["uiSource"]),
	}
	if m, ok := ParseMarket(coerceString(raw["market"])); ok {
		ex.Market = string(m)
	} else {
		ex.Market = string(MarketJP)
	}
	return ex
}

func coerceScenarios(raw any) *Scenarios {
	m := coerceMap(raw)
	if m == nil {
		return nil
	}
	sc := &Scenarios{
		Base: coerceScenario(m["base"]),
		Bull: coerceScenario(m["bull"]),
		Bear: coerceScenario(m["bear"]),
	}
	if sc.Base == nil && sc.Bull == nil && sc.Bear == nil {
		return nil
	}
	return sc
}

func coerceScenario(raw any) *Scenario {
	m := coerceMap(raw)
	if m == nil {
		return nil
	}
	s := &Scenario{
		Conditions: coerceString(m["conditions"]),
		TP:         coerceFloatSlice(m["tp"]),
		Rationale:  coerceStringSlice(m["rationale"]),
	}
	if v, ok := coerceFloat(m["entry"]); ok {
		s.Entry = floatPtr(v)
	}
	if v, ok := coerceFloat(m["sl"]); ok {
		s.SL = floatPtr(v)
	}
	if v, ok := coerceFloat(m["rr"]); ok {
		s.RR = floatPtr(v)
	}
	return s
}
