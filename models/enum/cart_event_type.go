package enum

// CartEventType 表示購物車狀態變更的類型
type CartEventType string

const (
	CartEventTypeLoaded      CartEventType = "loaded"
	CartEventTypeAdded       CartEventType = "added"
	CartEventTypeIncremented CartEventType = "incremented"
	CartEventTypeDecremented CartEventType = "decremented"
	CartEventTypeRemoved     CartEventType = "removed"
)

func (t CartEventType) String() string {
	return string(t)
}
