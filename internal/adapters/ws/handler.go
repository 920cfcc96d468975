package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"stitchd-marketplace-service/internal/adapters/identity"
	"stitchd-marketplace-service/internal/app"
	"stitchd-marketplace-service/internal/domain/listing"
	"stitchd-marketplace-service/internal/domain/shared"
	"stitchd-marketplace-service/internal/ports/inbound"
	"stitchd-marketplace-service/internal/ports/outbound"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> Client
	clientsMu      sync.RWMutex
	eventChannels  map[string]chan outbound.Event // clientID -> local event channel
	channelsMu     sync.RWMutex
	upgrader       websocket.Upgrader
	listingService inbound.ListingService
	bidService     inbound.BidService
	projection     *app.MarketplaceProjection
	identity       outbound.IdentityResolver
	broadcaster    outbound.Broadcaster
	logger         zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	ListingService inbound.ListingService
	BidService     inbound.BidService
	Projection     *app.MarketplaceProjection
	Identity       outbound.IdentityResolver
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		eventChannels:  make(map[string]chan outbound.Event),
		upgrader:       params.Upgrader,
		listingService: params.ListingService,
		bidService:     params.BidService,
		projection:     params.Projection,
		identity:       params.Identity,
		broadcaster:    params.Broadcaster,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades. The connection
// must carry a token issued by the authentication subsystem; identity is
// re-resolved per operation, so a token that expires mid-session fails
// closed on the next write.
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}

	userID, err := handler.identity.CurrentUser(identity.WithToken(r.Context(), token))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		UserID:  userID,
		Token:   token,
		Conn:    conn,
		Handler: handler,
		Logger:  handler.logger,
	})

	handler.registerClient(client)
	handler.createEventChannel(client.id)

	client.Start()

	// Start listening for broadcast events for this client
	go handler.listenForClientEvents(client)

	// Wait for client to disconnect
	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Msg("WebSocket client connected")
}

// createEventChannel creates a local event channel for a client
func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	handler.eventChannels[clientID] = eventChan
	return eventChan
}

func (handler *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.RLock()
	defer handler.channelsMu.RUnlock()

	return handler.eventChannels[clientID]
}

func (handler *WsHandler) removeEventChannel(clientID string) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		close(eventChan)
		delete(handler.eventChannels, clientID)
	}
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()

	delete(handler.clients, client.id)
	client.Stop()
	handler.removeEventChannel(client.id)

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Int("total_clients", len(handler.clients)).Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards broadcast events to the WebSocket
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client - this should not happen")
		return
	}

	for {
		select {
		case event := <-eventChan:
			wsMessage := handler.convertEventToMessage(event)

			if err := client.Send(wsMessage); err != nil {
				handler.logger.Error().
					Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			}

		case <-client.ctx.Done():
			return
		}
	}
}

func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSubscribe:
		return handler.handleSubscribe(client, msg)

	case MessageTypeUnsubscribe:
		return handler.handleUnsubscribe(client, msg)

	case MessageTypePlaceBid:
		return handler.handlePlaceBid(client, msg)

	case MessageTypeCreateListing:
		return handler.handleCreateListing(client, msg)

	case MessageTypeGetListing:
		return handler.handleGetListing(client, msg)

	case MessageTypeListListings:
		return handler.handleListListings(client, msg)

	case MessageTypeCloseListing:
		return handler.handleCloseListing(client, msg)

	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func (handler *WsHandler) convertEventToMessage(event outbound.Event) *ServerMessage {
	switch event.Type {
	case outbound.EventTypeBidPlaced:
		return &ServerMessage{
			Type:      MessageTypeBidPlaced,
			ListingID: &event.ListingID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	case outbound.EventTypeListingClosed:
		return &ServerMessage{
			Type:      MessageTypeListingClosed,
			ListingID: &event.ListingID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	default:
		return &ServerMessage{
			Type:      MessageTypeListingUpdate,
			ListingID: &event.ListingID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	}
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

func (handler *WsHandler) handleSubscribe(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return shared.ErrClientEventChannelNotFound
	}

	if err := handler.broadcaster.Subscribe(ctx, *msg.ListingID, client.id, eventChan); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("listing_id", msg.ListingID.String()).Msg("Failed to subscribe to listing")
		return err
	}

	response := NewServerMessage(MessageTypeListingUpdate)
	response.ListingID = msg.ListingID
	response.Data["status"] = "subscribed"

	handler.logger.Info().Str("client_id", client.id).Str("listing_id", msg.ListingID.String()).Msg("Client subscribed to listing")
	return client.Send(response)
}

// handleUnsubscribe handles unsubscription from listing events
func (handler *WsHandler) handleUnsubscribe(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	if err := handler.broadcaster.Unsubscribe(ctx, *msg.ListingID, client.id); err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeListingUpdate)
	response.ListingID = msg.ListingID
	response.Data["status"] = "unsubscribed"

	handler.logger.Info().Str("client_id", client.id).Str("listing_id", msg.ListingID.String()).Msg("Client unsubscribed from listing")
	return client.Send(response)
}

// handlePlaceBid handles bid placement
func (handler *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount := msg.Data["amount"].(float64) // validated in Validate

	ctx := identity.WithToken(context.Background(), client.token)

	// Make sure the bidder hears the outcome even if this is their first
	// interaction with the listing.
	if eventChan := handler.getEventChannel(client.id); eventChan != nil {
		if err := handler.broadcaster.Subscribe(ctx, *msg.ListingID, client.id, eventChan); err != nil {
			handler.logger.Warn().Err(err).Str("client_id", client.id).Str("listing_id", msg.ListingID.String()).Msg("Failed to subscribe bidder to listing")
		}
	}

	bidRequest := inbound.PlaceBidRequest{
		ListingID: *msg.ListingID,
		Amount:    amount,
	}

	updated, accepted, err := handler.bidService.PlaceBid(ctx, bidRequest)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.ListingID)
		return client.Send(errorMsg)
	}

	handler.logger.Info().
		Str("bid_id", accepted.ID.String()).
		Str("listing_id", updated.ID.String()).
		Str("user_id", client.userID.String()).
		Float64("amount", amount).
		Msg("Bid placed successfully")

	return nil
}

// handleCreateListing handles listing creation
func (handler *WsHandler) handleCreateListing(client *WsClient, msg *ClientMessage) error {
	ctx := identity.WithToken(context.Background(), client.token)

	req := inbound.CreateListingRequest{
		ItemID:            stringField(msg.Data, "item_id"),
		Images:            stringSliceField(msg.Data, "images"),
		Size:              stringField(msg.Data, "size"),
		Condition:         int(floatField(msg.Data, "condition")),
		Type:              listing.Type(stringField(msg.Data, "type")),
		Price:             floatField(msg.Data, "price"),
		RentPrice:         floatField(msg.Data, "rent_price"),
		RentDeposit:       floatField(msg.Data, "rent_deposit"),
		RentAvailableFrom: stringField(msg.Data, "rent_available_from"),
		RentAvailableTo:   stringField(msg.Data, "rent_available_to"),
		BidEndTime:        stringField(msg.Data, "bid_end_time"),
	}

	created, err := handler.listingService.CreateListing(ctx, req)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), nil)
		return client.Send(errorMsg)
	}

	response := handler.listingResponse(created, MessageTypeListingCreated)

	handler.logger.Info().Str("listing_id", created.ID.String()).Str("user_id", client.userID.String()).Msg("Listing created successfully")
	return client.Send(response)
}

// handleGetListing handles getting listing details
func (handler *WsHandler) handleGetListing(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	l, err := handler.listingService.GetListing(ctx, *msg.ListingID)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.ListingID)
		return client.Send(errorMsg)
	}

	return client.Send(handler.listingResponse(l, MessageTypeListingUpdate))
}

// handleListListings handles browsing listings through the projection
func (handler *WsHandler) handleListListings(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	var filter listing.Filter
	if typeStr, ok := msg.Data["type"].(string); ok && typeStr != "" {
		t := listing.Type(typeStr)
		filter.Type = &t
	}
	if statusStr, ok := msg.Data["status"].(string); ok && statusStr != "" {
		s := listing.Status(statusStr)
		filter.Status = &s
	}

	var listings []*listing.Listing
	var err error
	if handler.projection != nil {
		if err = handler.projection.SetFilter(ctx, filter); err == nil {
			listings = handler.projection.Listings()
		}
	} else {
		listings, err = handler.listingService.ListListings(ctx, filter)
	}
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), nil)
		return client.Send(errorMsg)
	}

	response := NewServerMessage(MessageTypeListingUpdate)
	response.Data["listings"] = listings
	response.Data["count"] = len(listings)

	return client.Send(response)
}

// handleCloseListing handles seller-initiated terminal transitions. An
// optional outcome of "sold" or "rented" completes the sale or rental;
// anything else closes the listing.
func (handler *WsHandler) handleCloseListing(client *WsClient, msg *ClientMessage) error {
	ctx := identity.WithToken(context.Background(), client.token)

	var updated *listing.Listing
	var err error
	switch stringField(msg.Data, "outcome") {
	case "sold":
		updated, err = handler.listingService.CompleteSale(ctx, *msg.ListingID)
	case "rented":
		updated, err = handler.listingService.CompleteRent(ctx, *msg.ListingID)
	default:
		updated, err = handler.listingService.CloseListing(ctx, *msg.ListingID)
	}
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.ListingID)
		return client.Send(errorMsg)
	}

	return client.Send(handler.listingResponse(updated, MessageTypeListingClosed))
}

func (handler *WsHandler) listingResponse(l *listing.Listing, msgType MessageType) *ServerMessage {
	response := NewServerMessage(msgType)
	response.ListingID = &l.ID

	response.Data["listing_id"] = l.ID
	response.Data["seller_id"] = l.SellerID
	response.Data["item_id"] = l.ItemID
	response.Data["type"] = string(l.Type)
	response.Data["status"] = string(l.Status)
	response.Data["price"] = l.Price
	if l.IsAuction() {
		response.Data["current_bid"] = l.CurrentBid
		response.Data["bid_end_time"] = l.BidEndTime.Format(time.RFC3339)
		response.Data["bid_count"] = len(l.BidHistory)
	}

	return response
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func floatField(data map[string]interface{}, key string) float64 {
	f, _ := data[key].(float64)
	return f
}

func stringSliceField(data map[string]interface{}, key string) []string {
	raw, ok := data[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
