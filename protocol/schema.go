package protocol

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// field numbers, see matchmaking.proto
const (
	joinPlayerID protoreflect.FieldNumber = 1
	joinTrophies protoreflect.FieldNumber = 2

	foundOpponentID       protoreflect.FieldNumber = 1
	foundOpponentTrophies protoreflect.FieldNumber = 2
	foundRoomID           protoreflect.FieldNumber = 3

	stateElixir     protoreflect.FieldNumber = 1
	stateHand       protoreflect.FieldNumber = 2
	stateNextCard   protoreflect.FieldNumber = 3
	stateServerTick protoreflect.FieldNumber = 4

	responseMatchFound protoreflect.FieldNumber = 1
	responseGameState  protoreflect.FieldNumber = 2
)

// matchmakingProto is matchmaking.proto in descriptor form.
var matchmakingProto = &descriptorpb.FileDescriptorProto{
	Name:    proto.String("matchmaking.proto"),
	Package: proto.String("game"),
	Syntax:  proto.String("proto3"),
	MessageType: []*descriptorpb.DescriptorProto{
		{
			Name: proto.String("JoinQueueRequest"),
			Field: []*descriptorpb.FieldDescriptorProto{
				scalar("player_id", joinPlayerID, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("trophies", joinTrophies, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			},
		},
		{
			Name: proto.String("MatchFoundResponse"),
			Field: []*descriptorpb.FieldDescriptorProto{
				scalar("opponent_id", foundOpponentID, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("opponent_trophies", foundOpponentTrophies, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("room_id", foundRoomID, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			},
		},
		{
			Name: proto.String("GameStateUpdate"),
			Field: []*descriptorpb.FieldDescriptorProto{
				scalar("elixir", stateElixir, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				repeated(scalar("hand", stateHand, descriptorpb.FieldDescriptorProto_TYPE_INT32)),
				scalar("next_card", stateNextCard, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("server_tick", stateServerTick, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			},
		},
		{
			Name: proto.String("ServerResponse"),
			Field: []*descriptorpb.FieldDescriptorProto{
				oneof(message("match_found", responseMatchFound, ".game.MatchFoundResponse"), 0),
				oneof(message("game_state", responseGameState, ".game.GameStateUpdate"), 0),
			},
			OneofDecl: []*descriptorpb.OneofDescriptorProto{
				{Name: proto.String("payload")},
			},
		},
	},
}

var (
	joinQueueRequest   protoreflect.MessageDescriptor
	matchFoundResponse protoreflect.MessageDescriptor
	gameStateUpdate    protoreflect.MessageDescriptor
	serverResponse     protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(matchmakingProto, new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("protocol: building matchmaking descriptors: %v", err))
	}
	msgs := fd.Messages()
	joinQueueRequest = msgs.ByName("JoinQueueRequest")
	matchFoundResponse = msgs.ByName("MatchFoundResponse")
	gameStateUpdate = msgs.ByName("GameStateUpdate")
	serverResponse = msgs.ByName("ServerResponse")
}

func scalar(name string, num protoreflect.FieldNumber, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(int32(num)),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func message(name string, num protoreflect.FieldNumber, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func oneof(f *descriptorpb.FieldDescriptorProto, index int32) *descriptorpb.FieldDescriptorProto {
	f.OneofIndex = proto.Int32(index)
	return f
}
